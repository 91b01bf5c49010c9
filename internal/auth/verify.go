// AngelaMos | 2026
// verify.go

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carterperez-dev/skyline-backend/internal/core"
)

const DefaultRecaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// HumanVerifier answers whether a captcha response proves a human sent the
// request.
type HumanVerifier interface {
	Verify(ctx context.Context, response, remoteIP string) (bool, error)
}

type HumanVerifierFunc func(ctx context.Context, response, remoteIP string) (bool, error)

func (f HumanVerifierFunc) Verify(
	ctx context.Context,
	response, remoteIP string,
) (bool, error) {
	return f(ctx, response, remoteIP)
}

// DomainChecker answers whether an email domain can receive mail.
type DomainChecker interface {
	HasMailDomain(ctx context.Context, domain string) (bool, error)
}

type DomainCheckerFunc func(ctx context.Context, domain string) (bool, error)

func (f DomainCheckerFunc) HasMailDomain(ctx context.Context, domain string) (bool, error) {
	return f(ctx, domain)
}

type RecaptchaVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

func NewRecaptchaVerifier(secret, verifyURL string, timeout time.Duration) *RecaptchaVerifier {
	if verifyURL == "" {
		verifyURL = DefaultRecaptchaVerifyURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RecaptchaVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
	}
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *RecaptchaVerifier) Verify(
	ctx context.Context,
	response, remoteIP string,
) (bool, error) {
	if response == "" {
		return false, nil
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		v.verifyURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return false, fmt.Errorf("build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha verify: %w: %w", core.ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf(
			"captcha verify: status %d: %w",
			resp.StatusCode,
			core.ErrUnavailable,
		)
	}

	var body recaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode captcha response: %w", err)
	}

	return body.Success, nil
}

type MXChecker struct {
	resolver *net.Resolver
	timeout  time.Duration
}

func NewMXChecker(timeout time.Duration) *MXChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MXChecker{resolver: net.DefaultResolver, timeout: timeout}
}

func (c *MXChecker) HasMailDomain(ctx context.Context, domain string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	records, err := c.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, nil
		}
		return false, fmt.Errorf("lookup mx %s: %w", domain, err)
	}

	return len(records) > 0, nil
}
