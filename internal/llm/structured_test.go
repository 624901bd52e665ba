package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	resp Response
	err  error
	got  []Message
}

func (f *fakeClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	f.got = messages
	return f.resp, f.err
}

func TestGenerateObjectDecodesReply(t *testing.T) {
	f := &fakeClient{resp: Response{Content: `{"score": 0.7}`}}
	var out struct {
		Score float64 `json:"score"`
	}
	err := GenerateObject(context.Background(), f, "score this", "hello", &out)
	require.NoError(t, err)
	require.Equal(t, 0.7, out.Score)

	require.Len(t, f.got, 2)
	require.Equal(t, "system", f.got[0].Role)
	require.Contains(t, f.got[0].Content, "score this")
	require.Contains(t, f.got[0].Content, "only JSON")
	require.Equal(t, "hello", f.got[1].Content)
}

func TestGenerateObjectToleratesFencedJSON(t *testing.T) {
	f := &fakeClient{resp: Response{Content: "Sure! Here you go:\n```json\n{\"score\": 0.4}\n```"}}
	var out struct {
		Score float64 `json:"score"`
	}
	err := GenerateObject(context.Background(), f, "i", "m", &out)
	require.NoError(t, err)
	require.Equal(t, 0.4, out.Score)
}

func TestGenerateObjectNoJSON(t *testing.T) {
	f := &fakeClient{resp: Response{Content: "I cannot answer that."}}
	var out map[string]interface{}
	err := GenerateObject(context.Background(), f, "i", "m", &out)
	require.ErrorIs(t, err, ErrMalformedOutput)
}

func TestGenerateObjectInvalidJSON(t *testing.T) {
	f := &fakeClient{resp: Response{Content: `{"score": }`}}
	var out map[string]interface{}
	err := GenerateObject(context.Background(), f, "i", "m", &out)
	require.ErrorIs(t, err, ErrMalformedOutput)
}

func TestGenerateObjectPropagatesClientError(t *testing.T) {
	wantErr := errors.New("upstream timeout")
	f := &fakeClient{err: wantErr}
	var out map[string]interface{}
	err := GenerateObject(context.Background(), f, "i", "m", &out)
	require.ErrorIs(t, err, wantErr)
	require.NotErrorIs(t, err, ErrMalformedOutput)
}

func TestExtractJSON(t *testing.T) {
	require.Equal(t, `{"a":1}`, extractJSON(`{"a":1}`))
	require.Equal(t, `{"a":1}`, extractJSON("prefix {\"a\":1} suffix"))
	require.Equal(t, `{"a":{"b":2}}`, extractJSON(`{"a":{"b":2}}`))
	require.Equal(t, "", extractJSON("no braces here"))
	require.Equal(t, "", extractJSON("} reversed {"))
}
