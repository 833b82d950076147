//go:build darwin

package display

// Заголовок и текст передаются аргументами скрипта, а не подставляются в его исходник.
func notifyCommand(appName, title, body, icon string) (string, []string) {
	return "osascript", []string{
		"-e", "on run argv",
		"-e", "display notification (item 2 of argv) with title (item 1 of argv) subtitle (item 3 of argv)",
		"-e", "end run",
		title, body, appName,
	}
}

func openCommand(url string) (string, []string) {
	return "open", []string{url}
}
