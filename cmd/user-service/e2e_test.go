//go:build e2e

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type e2eCfg struct {
	APIBase     string
	MailhogBase string
	WaitEmail   time.Duration
}

func loadE2ECfg(t *testing.T) e2eCfg {
	wait, err := time.ParseDuration(getenv("E2E_WAIT_EMAIL", "30s"))
	require.NoError(t, err)
	return e2eCfg{
		APIBase:     getenv("E2E_API_BASE", "http://localhost:8080"),
		MailhogBase: getenv("E2E_MAILHOG_BASE", "http://localhost:8025"),
		WaitEmail:   wait,
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type mailhogMessages struct {
	Items []struct {
		To []struct {
			Mailbox string `json:"Mailbox"`
			Domain  string `json:"Domain"`
		} `json:"To"`
		Content struct {
			Headers map[string][]string `json:"Headers"`
			Body    string              `json:"Body"`
		} `json:"Content"`
	} `json:"items"`
}

var codeRe = regexp.MustCompile(`\b[0-9]{6}\b`)

func send(t *testing.T, method, url string, in any, bearer string) (int, []byte) {
	t.Helper()
	b, _ := json.Marshal(in)
	req, err := http.NewRequest(method, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func waitHealthy(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(time.Second)
	}
	t.Fatalf("user-service not healthy at %s", base)
}

// waitCode polls mailhog for a message to email whose subject contains
// subject and returns the six digit code in its body.
func waitCode(t *testing.T, c e2eCfg, email, subject string) string {
	t.Helper()
	deadline := time.Now().Add(c.WaitEmail)
	for time.Now().Before(deadline) {
		resp, err := http.Get(c.MailhogBase + "/api/v2/messages")
		if err == nil {
			var out mailhogMessages
			_ = json.NewDecoder(resp.Body).Decode(&out)
			_ = resp.Body.Close()
			for _, m := range out.Items {
				for _, to := range m.To {
					if !strings.EqualFold(to.Mailbox+"@"+to.Domain, email) {
						continue
					}
					subj := ""
					if v := m.Content.Headers["Subject"]; len(v) > 0 {
						subj = v[0]
					}
					if strings.Contains(subj, subject) {
						if code := codeRe.FindString(m.Content.Body); code != "" {
							return code
						}
					}
				}
			}
		}
		time.Sleep(time.Second)
	}
	t.Fatalf("no %q mail for %s", subject, email)
	return ""
}

func TestSignupWithOTPThenLogin(t *testing.T) {
	c := loadE2ECfg(t)
	waitHealthy(t, c.APIBase)

	email := fmt.Sprintf("e2e_%d@jobportal.dev", time.Now().UnixNano())

	status, body := send(t, http.MethodPost, c.APIBase+"/v1/auth/otp", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusOK, status, string(body))

	code := waitCode(t, c, email, "verification code")
	status, body = send(t, http.MethodPost, c.APIBase+"/v1/auth/otp/verify", map[string]string{"email": email, "otp": code}, "")
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = send(t, http.MethodPost, c.APIBase+"/v1/auth/register", map[string]string{
		"email": email, "password": "P@ssw0rd!", "name": "E2E",
	}, "")
	require.Equal(t, http.StatusCreated, status, string(body))
	var registered struct {
		IsVerified bool `json:"is_verified"`
	}
	require.NoError(t, json.Unmarshal(body, &registered))
	require.True(t, registered.IsVerified)

	status, body = send(t, http.MethodPost, c.APIBase+"/v1/auth/login", map[string]string{"email": email, "password": "P@ssw0rd!"}, "")
	require.Equal(t, http.StatusOK, status, string(body))
	var login struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(body, &login))

	status, body = send(t, http.MethodGet, c.APIBase+"/v1/users/me", nil, login.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, status, string(body))

	status, _ = send(t, http.MethodPost, c.APIBase+"/v1/auth/logout", map[string]string{"refreshToken": login.Tokens.RefreshToken}, "")
	require.Equal(t, http.StatusOK, status)
	status, _ = send(t, http.MethodPost, c.APIBase+"/v1/auth/refresh", map[string]string{"refreshToken": login.Tokens.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestPasswordResetSendsMail(t *testing.T) {
	c := loadE2ECfg(t)
	waitHealthy(t, c.APIBase)

	email := fmt.Sprintf("e2e_reset_%d@jobportal.dev", time.Now().UnixNano())
	status, body := send(t, http.MethodPost, c.APIBase+"/v1/auth/register", map[string]string{
		"email": email, "password": "P@ssw0rd!", "name": "E2E",
	}, "")
	require.Equal(t, http.StatusCreated, status, string(body))

	status, _ = send(t, http.MethodPost, c.APIBase+"/v1/auth/password/forgot", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusOK, status)
	code := waitCode(t, c, email, "Password reset")

	status, body = send(t, http.MethodPost, c.APIBase+"/v1/auth/password/verify", map[string]string{"email": email, "otp": code}, "")
	require.Equal(t, http.StatusOK, status, string(body))
	var grant struct {
		ResetToken string `json:"resetToken"`
	}
	require.NoError(t, json.Unmarshal(body, &grant))

	status, body = send(t, http.MethodPost, c.APIBase+"/v1/auth/password/reset", map[string]string{
		"email": email, "resetToken": grant.ResetToken, "newPassword": "N3wP@ss!", "confirmPassword": "N3wP@ss!",
	}, "")
	require.Equal(t, http.StatusOK, status, string(body))

	status, _ = send(t, http.MethodPost, c.APIBase+"/v1/auth/login", map[string]string{"email": email, "password": "N3wP@ss!"}, "")
	require.Equal(t, http.StatusOK, status)
}
