//go:build windows

package display

import "fmt"

// Текст приходит из push payload, поэтому в скрипт попадают только литералы в одинарных кавычках.
func notifyCommand(appName, title, body, icon string) (string, []string) {
	ps := fmt.Sprintf(`
Add-Type -AssemblyName System.Windows.Forms
$n = New-Object System.Windows.Forms.NotifyIcon
$n.Icon = [System.Drawing.SystemIcons]::Information
$n.Text = %s
$n.Visible = $true
$n.ShowBalloonTip(5000, %s, %s, 'Info')
Start-Sleep -Seconds 6
$n.Dispose()
`, powershellLiteral(appName), powershellLiteral(title), powershellLiteral(body))
	return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", ps}
}

func openCommand(url string) (string, []string) {
	return "rundll32", []string{"url.dll,FileProtocolHandler", url}
}
