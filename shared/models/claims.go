package models

import "github.com/golang-jwt/jwt/v5"

// Claims - поля JWT, которые выдает auth-сервис. UserID передается в Subject.
type Claims struct {
	jwt.RegisteredClaims
}
