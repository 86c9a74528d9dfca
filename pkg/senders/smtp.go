package senders

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/dukex/cadence/pkg/models"
	"github.com/emersion/go-message/mail"
)

// SMTPConfig holds the submission server settings of the email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// defaultSMTPTimeout bounds a submission when the caller's context has no deadline.
const defaultSMTPTimeout = 30 * time.Second

type sendMailFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers email through an SMTP submission server.
type SMTPSender struct {
	config   SMTPConfig
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config, sendMail: sendMailContext, now: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, message Message) (Receipt, error) {
	if !message.Contact.HasEmail() {
		return Receipt{}, ErrMissingRecipient
	}

	err := ctx.Err()
	if err != nil {
		return Receipt{}, err
	}

	raw, messageID, err := s.compose(message)
	if err != nil {
		return Receipt{}, err
	}

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	err = s.sendMail(ctx, addr, auth, s.config.From, []string{message.Contact.Email}, raw)
	if err != nil {
		return Receipt{}, &ProviderError{Channel: models.ChannelEmail, Message: err.Error()}
	}

	return Receipt{ProviderMessageID: messageID}, nil
}

// sendMailContext is smtp.SendMail bound to ctx: the connection deadline
// follows the context and cancelling it aborts the exchange.
func sendMailContext(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) (err error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, defaultSMTPTimeout)
		defer cancel()
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid smtp address %s: %w", addr, err)
	}

	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial smtp server: %w", err)
	}

	deadline, _ := ctx.Deadline()

	err = conn.SetDeadline(deadline)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to set smtp deadline: %w", err), conn.Close())
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	defer func() {
		if err == nil {
			return
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		} else if !time.Now().Before(deadline) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
	}()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		err = client.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
		if err != nil {
			return err
		}
	}

	if auth != nil {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support AUTH")
		}

		err = client.Auth(auth)
		if err != nil {
			return err
		}
	}

	err = client.Mail(from)
	if err != nil {
		return err
	}

	for _, recipient := range to {
		err = client.Rcpt(recipient)
		if err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}

	_, err = writer.Write(msg)
	if err != nil {
		return err
	}

	err = writer.Close()
	if err != nil {
		return err
	}

	return client.Quit()
}

func (s *SMTPSender) compose(message Message) ([]byte, string, error) {
	var header mail.Header

	header.SetDate(s.now())
	header.SetAddressList("From", []*mail.Address{{Name: s.config.FromName, Address: s.config.From}})
	header.SetAddressList("To", []*mail.Address{{Name: message.Contact.FullName(), Address: message.Contact.Email}})
	header.SetSubject(message.Subject)
	header.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	err := header.GenerateMessageID()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate message id: %w", err)
	}

	messageID, err := header.MessageID()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read message id: %w", err)
	}

	var buf bytes.Buffer

	writer, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create mail writer: %w", err)
	}

	_, err = io.WriteString(writer, message.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write mail body: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to close mail writer: %w", err)
	}

	return buf.Bytes(), messageID, nil
}
