package notify

import (
	"context"
	"fmt"
	"html"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	appName        = "Jira Reminder"
	commandTimeout = 10 * time.Second
)

var appleScriptEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Runner executes an external command
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Desktop shows notifications through the platform notifier. Notify starts
// the notifier in the background and returns immediately.
type Desktop struct {
	GOOS string
	Run  Runner

	running sync.WaitGroup
}

// NewDesktop returns a sink for the current platform
func NewDesktop() *Desktop {
	return &Desktop{GOOS: runtime.GOOS, Run: execRunner}
}

func (d *Desktop) Notify(n Notification) {
	name, args, ok := desktopCommand(d.GOOS, n)
	if !ok {
		logrus.WithField("os", d.GOOS).Debug("Desktop notifications are not supported on this platform")
		return
	}

	d.running.Add(1)
	go func() {
		defer d.running.Done()
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := d.Run(ctx, name, args...); err != nil {
			logrus.WithError(err).WithField("title", n.Title).Warn("Failed to show desktop notification")
		}
	}()
}

// Wait blocks until every started notifier has exited
func (d *Desktop) Wait() {
	d.running.Wait()
}

// desktopCommand returns the command showing n on goos
func desktopCommand(goos string, n Notification) (string, []string, bool) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		args := []string{"-a", appName, "-u", urgency(n.Severity)}
		if n.Duration > 0 {
			args = append(args, "-t", strconv.FormatInt(n.Duration.Milliseconds(), 10))
		}
		return "notify-send", append(args, n.Title, n.Body), true
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			appleScriptEscaper.Replace(n.Body), appleScriptEscaper.Replace(n.Title))
		return "osascript", []string{"-e", script}, true
	case "windows":
		return "powershell", []string{"-NoProfile", "-Command", toastScript(n)}, true
	default:
		return "", nil, false
	}
}

func urgency(s Severity) string {
	switch s {
	case Critical:
		return "critical"
	case Warning:
		return "normal"
	default:
		return "low"
	}
}

func toastScript(n Notification) string {
	// html.EscapeString also escapes single quotes, keeping the PowerShell literal intact
	template := fmt.Sprintf(
		"<toast><visual><binding template='ToastText02'><text id='1'>%s</text><text id='2'>%s</text></binding></visual></toast>",
		html.EscapeString(n.Title), html.EscapeString(n.Body))

	return strings.Join([]string{
		"[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null",
		"[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null",
		"$xml = New-Object Windows.Data.Xml.Dom.XmlDocument",
		fmt.Sprintf("$xml.LoadXml('%s')", template),
		"$toast = [Windows.UI.Notifications.ToastNotification]::new($xml)",
		fmt.Sprintf("[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('%s').Show($toast)", appName),
	}, "\n")
}
