package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyldephyre/jessica-core/internal/apperr"
)

func TestTranscribeProxiesMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcribe", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "note.wav", header.Filename)

		json.NewEncoder(w).Encode(Result{Text: "hello world", Language: "en"})
	}))
	defer srv.Close()

	s := NewService(Config{URL: srv.URL})
	got, err := s.Transcribe(context.Background(), "note.wav", strings.NewReader("RIFFdata"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Text)
	assert.Equal(t, "en", got.Language)
}

func TestTranscribeRejectsOversizedUpload(t *testing.T) {
	s := NewService(Config{URL: "http://example.invalid", MaxUploadMB: 1})
	big := bytes.Repeat([]byte("a"), (1<<20)+1)

	_, err := s.Transcribe(context.Background(), "big.wav", bytes.NewReader(big))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTranscribeAcceptsExactlyAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Text: "ok"})
	}))
	defer srv.Close()

	s := NewService(Config{URL: srv.URL, MaxUploadMB: 1})
	atLimit := bytes.Repeat([]byte("a"), 1<<20)

	_, err := s.Transcribe(context.Background(), "edge.wav", bytes.NewReader(atLimit))
	assert.NoError(t, err)
}

func TestTranscribeEmptyFile(t *testing.T) {
	s := NewService(Config{URL: "http://example.invalid"})
	_, err := s.Transcribe(context.Background(), "empty.wav", strings.NewReader(""))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTranscribeMissingFilename(t *testing.T) {
	s := NewService(Config{URL: "http://example.invalid"})
	_, err := s.Transcribe(context.Background(), "", strings.NewReader("data"))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTranscribeBackendErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "Whisper model not available"})
	}))
	defer srv.Close()

	s := NewService(Config{URL: srv.URL})
	_, err := s.Transcribe(context.Background(), "note.wav", strings.NewReader("data"))
	assert.True(t, apperr.IsKind(err, apperr.KindExternalService))
}
