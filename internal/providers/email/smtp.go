package email

import (
	"context"
	"fmt"
	"net/smtp"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPNotifier struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) SendVisitCapWarning(ctx context.Context, to, businessName string, current, cap int64) error {
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	subject := fmt.Sprintf("%s is approaching its monthly visit limit", businessName)
	body := fmt.Sprintf(
		"Hi,\r\n\r\n%s has used %d of its %d included monthly visits. "+
			"Once the limit is reached, new visitors will no longer be tracked.\r\n\r\n"+
			"Upgrade your plan to lift the limit.\r\n",
		businessName, current, cap,
	)
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", to, subject, body))

	return smtp.SendMail(addr, auth, n.cfg.From, []string{to}, msg)
}
