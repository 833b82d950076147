//go:build linux

package display

func notifyCommand(appName, title, body, icon string) (string, []string) {
	args := []string{}
	if appName != "" {
		args = append(args, "--app-name="+appName)
	}
	if icon != "" {
		args = append(args, "--icon="+icon)
	}
	return "notify-send", append(args, "--", title, body)
}

func openCommand(url string) (string, []string) {
	return "xdg-open", []string{url}
}
