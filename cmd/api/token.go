package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/kidpech/tracelens/internal/config"
	"github.com/kidpech/tracelens/internal/infrastructure/auth"
)

var errAuthDisabled = errors.New("JWT_ACCESS_SECRET is not set; admin endpoints are disabled")

// issueAdminToken writes an operator access token for subject to w.
func issueAdminToken(cfg config.AuthConfig, subject string, w io.Writer) error {
	manager := auth.NewManager(cfg)
	if !manager.Enabled() {
		return errAuthDisabled
	}
	token, err := manager.IssueAccessToken(subject, "admin")
	if err != nil {
		return fmt.Errorf("issue admin token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
