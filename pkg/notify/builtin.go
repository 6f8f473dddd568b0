package notify

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/toolexec"
)

const DefaultTelegramURL = "https://api.telegram.org"

type Telegram struct {
	client  *http.Client
	baseURL string
	getenv  func(string) string
}

func NewTelegram(baseURL string) *Telegram {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &Telegram{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		getenv:  os.Getenv,
	}
}

func (t *Telegram) Send(ctx context.Context, event domain.Event) error {
	token := t.getenv("TELEGRAM_BOT_TOKEN")
	chatID := t.getenv("TELEGRAM_CHAT_ID")
	if token == "" || chatID == "" {
		return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set")
	}

	form := url.Values{}
	form.Set("chat_id", chatID)
	// plain text: paths and tool errors carry unbalanced _ and *
	form.Set("text", message(event))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/bot"+token+"/sendMessage", strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "unable to build telegram request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		// the request URL carries the bot token
		return errors.New("telegram request failed: " + strings.ReplaceAll(err.Error(), token, "***"))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("telegram responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

type Email struct {
	runner toolexec.Runner
	getenv func(string) string
}

func NewEmail(runner toolexec.Runner) *Email {
	return &Email{runner: runner, getenv: os.Getenv}
}

// Send pipes the message into mail, or mailx when mail is missing.
func (e *Email) Send(ctx context.Context, event domain.Event) error {
	to := e.getenv("EMAIL_TO")
	if to == "" {
		return errors.New("EMAIL_TO must be set")
	}

	subject := e.getenv("EMAIL_SUBJECT")
	if subject == "" {
		subject = fmt.Sprintf("Backup %s: %s", event.BaseName, event.Status)
	}

	mailer := "mail"
	if _, err := e.runner.LookPath(mailer); err != nil {
		mailer = "mailx"
	}

	return e.runner.Run(ctx, toolexec.Command{
		Name:  mailer,
		Args:  []string{"-s", subject, to},
		Stdin: strings.NewReader(message(event) + "\n"),
	})
}

func message(event domain.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nStatus: %s\nArchive: %s\nSize: %s", event.BaseName, event.Status, event.ArchivePath, domain.HumanSize(event.TotalSize))
	if event.UploadTarget != "" {
		fmt.Fprintf(&b, "\nTarget: %s", event.UploadTarget)
	}
	if event.FailedStage != "" {
		fmt.Fprintf(&b, "\nFailed stage: %s", event.FailedStage)
	}
	if event.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", event.Error)
	}
	if event.DryRun {
		b.WriteString("\n(dry run)")
	}

	return b.String()
}
