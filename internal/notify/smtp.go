package notify

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wneessen/go-mail"
	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service holding SMTP passwords, keyed by
// the sender address.
const KeyringService = "sinsfetch"

var (
	keyringGet = keyring.Get
	keyringSet = keyring.Set
)

// Config is the email section of the configuration file.
type Config struct {
	From     string `mapstructure:"from" yaml:"from" validate:"required,email"`
	To       string `mapstructure:"to" yaml:"to" validate:"required,email_list"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host" validate:"required,hostname_rfc1123|ip"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port" validate:"required,gt=0,lt=65536"`
	Password string `mapstructure:"password" yaml:"password"`
}

// Recipients splits To on commas.
func (c Config) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// FieldError is one invalid configuration field.
type FieldError struct {
	Field  string
	Reason string
}

// ConfigurationError lists every invalid field of the email configuration.
type ConfigurationError struct {
	Fields []FieldError
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("email.%s: %s", f.Field, f.Reason)
	}
	return "invalid email configuration: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("email_list", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if strings.TrimSpace(s) == "" {
			return false
		}
		for _, addr := range strings.Split(s, ",") {
			if v.Var(strings.TrimSpace(addr), "email") != nil {
				return false
			}
		}
		return true
	})
	return v
}

// Validate checks c and returns a *ConfigurationError naming every bad
// field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	cerr := &ConfigurationError{}
	for _, fe := range verrs {
		cerr.Fields = append(cerr.Fields, FieldError{Field: yamlName(fe.Field()), Reason: reason(fe)})
	}
	return cerr
}

func yamlName(field string) string {
	switch field {
	case "From":
		return "from"
	case "To":
		return "to"
	case "SMTPHost":
		return "smtp_host"
	case "SMTPPort":
		return "smtp_port"
	}
	return strings.ToLower(field)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email", "email_list":
		return fmt.Sprintf("%q is not a valid address", fe.Value())
	case "gt", "lt":
		return fmt.Sprintf("%v is not a valid port", fe.Value())
	}
	return fmt.Sprintf("%v fails %s", fe.Value(), fe.Tag())
}

// SMTPMailer sends through an SMTP server with STARTTLS and PLAIN auth,
// logging in as the sender.
type SMTPMailer struct {
	cfg     Config
	now     func() time.Time
	TLS     *tls.Config
	Timeout time.Duration
}

// NewSMTPMailer validates cfg and resolves the password, falling back to
// the OS keyring when the configuration leaves it empty.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Password == "" {
		pw, err := keyringGet(KeyringService, cfg.From)
		if err != nil {
			return nil, &ConfigurationError{Fields: []FieldError{{
				Field:  "password",
				Reason: fmt.Sprintf("not set and no keyring entry for %s (%v)", cfg.From, err),
			}}}
		}
		cfg.Password = pw
	}
	return &SMTPMailer{
		cfg:     cfg,
		now:     time.Now,
		TLS:     &tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12},
		Timeout: 30 * time.Second,
	}, nil
}

// StorePassword saves the SMTP password for from in the OS keyring.
func StorePassword(from, password string) error {
	return keyringSet(KeyringService, from, password)
}

func (m *SMTPMailer) Send(msg Message) error {
	mm, err := m.message(msg)
	if err != nil {
		return err
	}
	c, err := mail.NewClient(m.cfg.SMTPHost,
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTimeout(m.Timeout),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(m.TLS),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.From),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("error: smtp client: %w", err)
	}
	addr := net.JoinHostPort(m.cfg.SMTPHost, strconv.Itoa(m.cfg.SMTPPort))
	if err := c.DialAndSend(mm); err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) {
			return fmt.Errorf("error: cannot reach SMTP server %s: %w", addr, err)
		}
		return fmt.Errorf("error: sending via %s: %w", addr, err)
	}
	return nil
}

// message builds the plain-text mail for msg.
func (m *SMTPMailer) message(msg Message) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("error: sender %s: %w", m.cfg.From, err)
	}
	if err := mm.To(m.cfg.Recipients()...); err != nil {
		return nil, fmt.Errorf("error: recipients %s: %w", m.cfg.To, err)
	}
	mm.Subject(msg.Subject)
	mm.SetDateWithValue(m.now())
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)
	return mm, nil
}
