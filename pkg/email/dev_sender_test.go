package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountd/pkg/email"
)

func TestDevSender_Send(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("writes html and metadata files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sender := email.NewDevSender(dir)

		err := sender.Send(ctx, email.SendParams{
			To:       "user@example.com",
			Subject:  "Verify your email",
			BodyHTML: "<p>click here</p>",
			Tag:      "verify",
		})
		require.NoError(t, err)

		htmlFiles, err := filepath.Glob(filepath.Join(dir, "*.html"))
		require.NoError(t, err)
		require.Len(t, htmlFiles, 1)
		body, err := os.ReadFile(htmlFiles[0])
		require.NoError(t, err)
		assert.Equal(t, "<p>click here</p>", string(body))

		jsonFiles, err := filepath.Glob(filepath.Join(dir, "*.json"))
		require.NoError(t, err)
		require.Len(t, jsonFiles, 1)

		var meta struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
			Tag     string `json:"tag"`
		}
		raw, err := os.ReadFile(jsonFiles[0])
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &meta))
		assert.Equal(t, "user@example.com", meta.To)
		assert.Equal(t, "Verify your email", meta.Subject)
		assert.Equal(t, "verify", meta.Tag)
	})

	t.Run("creates the output directory if missing", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "nested", "emails")
		sender := email.NewDevSender(dir)

		err := sender.Send(ctx, email.SendParams{
			To:       "user@example.com",
			Subject:  "Hello",
			BodyHTML: "<p>hi</p>",
		})
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("rejects invalid params before touching disk", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "untouched")
		sender := email.NewDevSender(dir)

		err := sender.Send(ctx, email.SendParams{To: "bad", Subject: "x", BodyHTML: "y"})
		assert.ErrorIs(t, err, email.ErrInvalidParams)

		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})
}
