package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
)

type staticKey struct {
	key string
	err error
}

func (k staticKey) APIKey(context.Context) (string, error) { return k.key, k.err }

type captured struct {
	path string
	key  string
	body gjson.Result
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got.path, got.key, got.body = r.URL.Path, r.Header.Get("x-goog-api-key"), gjson.ParseBytes(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestGenerate_ChatHistory(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"Ok, "},{"text":"great!"}]}}]}`)
	c := New(Config{BaseURL: srv.URL}, staticKey{key: "k1"})

	reply, err := c.Generate(context.Background(), "be nice", []model.ConversationTurn{
		{Role: model.RoleUser, Text: "hi"},
		{Role: model.RoleAssistant, Text: "hello"},
		{Role: model.RoleUser, Text: "dinos"},
	})
	require.NoError(t, err)
	require.Equal(t, "Ok, great!", reply)
	require.Equal(t, "/models/"+DefaultTextModel+":generateContent", got.path)
	require.Equal(t, "k1", got.key)
	require.Equal(t, "be nice", got.body.Get("systemInstruction.parts.0.text").String())
	require.Equal(t, "model", got.body.Get("contents.1.role").String())
	require.Equal(t, "dinos", got.body.Get("contents.2.parts.0.text").String())
}

func TestGenerateJSON_Schema(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"[\"a\",\"b\"]"}]}}]}`)
	c := New(Config{BaseURL: srv.URL}, staticKey{key: "k"})

	raw, err := c.GenerateJSON(context.Background(), "plan")
	require.NoError(t, err)
	require.Equal(t, `["a","b"]`, raw)
	require.Equal(t, "application/json", got.body.Get("generationConfig.responseMimeType").String())
	require.Equal(t, "ARRAY", got.body.Get("generationConfig.responseSchema.type").String())
}

func TestGenerateImage(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	srv, got := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"data":"`+img+`"}}]}}]}`)
	c := New(Config{BaseURL: srv.URL, ImageModel: "img-model"}, staticKey{key: "k"})

	ref := &model.Image{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}
	out, err := c.GenerateImage(context.Background(), "draw", ref)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "image/png", out[0].MIMEType)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, out[0].Data)
	require.Equal(t, "/models/img-model:generateContent", got.path)
	require.Equal(t, "image/jpeg", got.body.Get("contents.0.parts.1.inlineData.mimeType").String())
	require.Equal(t, "1K", got.body.Get("generationConfig.imageConfig.imageSize").String())
}

func TestGenerateImage_NoImagePart(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`)
	c := New(Config{BaseURL: srv.URL}, staticKey{key: "k"})

	out, err := c.GenerateImage(context.Background(), "draw", nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestSynthesize(t *testing.T) {
	pcm := base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0})
	srv, got := newServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16","data":"`+pcm+`"}}]}}]}`)
	c := New(Config{BaseURL: srv.URL}, staticKey{key: "k"})

	out, err := c.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 2, 0}, out)
	require.Equal(t, "Kore", got.body.Get("generationConfig.speechConfig.voiceConfig.prebuiltVoiceConfig.voiceName").String())
	require.Equal(t, "AUDIO", got.body.Get("generationConfig.responseModalities.0").String())
}

func TestPermissionDenied(t *testing.T) {
	srv, _ := newServer(t, http.StatusForbidden, `{"error":{"code":403,"message":"billing required","status":"PERMISSION_DENIED"}}`)
	c := New(Config{BaseURL: srv.URL}, staticKey{key: "k"})

	_, err := c.GenerateImage(context.Background(), "draw", nil)
	require.ErrorIs(t, err, errs.ErrPermissionDenied)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "billing required", apiErr.Message)
	require.NotContains(t, err.Error(), "k\"")
}

func TestOtherAPIErrorIsNotDenial(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, `upstream exploded`)
	c := New(Config{BaseURL: srv.URL}, staticKey{key: "k"})

	_, err := c.GenerateJSON(context.Background(), "plan")
	require.Error(t, err)
	require.False(t, errors.Is(err, errs.ErrPermissionDenied))
	require.Contains(t, err.Error(), "upstream exploded")
}

func TestMissingKeyIsDenial(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, staticKey{err: errs.ErrNoCredential})

	_, err := c.GenerateJSON(context.Background(), "plan")
	require.ErrorIs(t, err, errs.ErrPermissionDenied)
	require.ErrorIs(t, err, errs.ErrNoCredential)
}
