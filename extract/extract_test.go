package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deedworks/deedflow/deed"
)

func TestDecodeRecord(t *testing.T) {
	var raw = `{
		"buyer_details": [{"name": "A Kumar", "phone_number": 9900112233}],
		"seller_details": [{"name": "B Rao", "property_share": "50%"}],
		"property_details": {
			"schedule_b_area": "1,200.5",
			"schedule_c_property_area": 980,
			"sale_consideration": 4500000,
			"registration_fee": "45,000"
		},
		"document_details": {"transaction_date": "2024-03-15"}
	}`

	rec, err := DecodeRecord([]byte(raw))
	require.NoError(t, err)

	require.Len(t, rec.Buyers, 1)
	require.Equal(t, "A Kumar", *rec.Buyers[0].Name)
	require.Equal(t, FlexString("9900112233"), *rec.Buyers[0].PhoneNumber)

	require.Len(t, rec.Sellers, 1)
	require.Equal(t, FlexString("50%"), *rec.Sellers[0].PropertyShare)
	require.Empty(t, rec.ConfirmingParties)

	require.Equal(t, FlexFloat(1200.5), *rec.Property.ScheduleBArea)
	require.Equal(t, FlexFloat(980), *rec.Property.ScheduleCArea)
	require.Equal(t, FlexString("4500000"), *rec.Property.SaleConsideration)
	require.Equal(t, FlexString("45,000"), *rec.Property.RegistrationFee)
	require.Equal(t, "2024-03-15", *rec.Document.TransactionDate)
}

func TestDecodeRecordStripsCodeFence(t *testing.T) {
	var raw = "```json\n{\"buyer_details\": [], \"seller_details\": []}\n```"
	rec, err := DecodeRecord([]byte(raw))
	require.NoError(t, err)
	require.Empty(t, rec.Buyers)
}

func TestDecodeRecordRejectsGarbage(t *testing.T) {
	_, err := DecodeRecord([]byte("the model rambled instead of answering"))
	require.Error(t, err)
}

type stubModel struct {
	raw    []byte
	err    error
	images int
}

func (s *stubModel) Generate(ctx context.Context, prompt string, images [][]byte) ([]byte, error) {
	s.images = len(images)
	if s.err != nil {
		return nil, s.err
	}
	return s.raw, nil
}

func TestExtractCapsAttachedImages(t *testing.T) {
	var m = &stubModel{raw: []byte(`{"buyer_details": [], "seller_details": []}`)}
	var e = NewExtractor(m)

	var pages = make([]deed.PageImage, 6)
	for i := range pages {
		pages[i] = deed.PageImage{Number: i + 1, PNG: []byte{byte(i)}}
	}
	_, err := e.Extract(context.Background(), "doc", "text", pages)
	require.NoError(t, err)
	require.Equal(t, 3, m.images)
}

func TestExtractWrapsModelFailure(t *testing.T) {
	var e = NewExtractor(&stubModel{err: errors.New("quota exhausted")})
	_, err := e.Extract(context.Background(), "doc", "text", nil)
	require.ErrorIs(t, err, deed.ErrModelInvocation)
}

func TestExtractWrapsUndecodableAnswer(t *testing.T) {
	var e = NewExtractor(&stubModel{raw: []byte("not json")})
	_, err := e.Extract(context.Background(), "doc", "text", nil)
	require.ErrorIs(t, err, deed.ErrModelInvocation)
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath string
	var gotReq geminiRequest

	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		var answer = map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": `{"registration_fee": 1500}`}},
				},
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(answer))
	}))
	defer srv.Close()

	var g = NewGemini("test-key")
	g.BaseURL = srv.URL

	raw, err := g.Generate(context.Background(), "read the fee", [][]byte{{1, 2, 3}})
	require.NoError(t, err)
	require.JSONEq(t, `{"registration_fee": 1500}`, string(raw))

	require.Equal(t, "/models/gemini-2.0-flash:generateContent", gotPath)
	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 2)
	require.Equal(t, "read the fee", gotReq.Contents[0].Parts[0].Text)
	require.NotNil(t, gotReq.Contents[0].Parts[1].InlineData)
	require.Equal(t, "image/png", gotReq.Contents[0].Parts[1].InlineData.MIMEType)
	require.Equal(t, float64(0), gotReq.GenerationConfig.Temperature)
	require.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMIMEType)
}

func TestGeminiSurfacesAPIError(t *testing.T) {
	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "rate limited"}}`))
	}))
	defer srv.Close()

	var g = NewGemini("test-key")
	g.BaseURL = srv.URL

	_, err := g.Generate(context.Background(), "prompt", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestGeminiReadRegistrationFee(t *testing.T) {
	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var answer = map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": "```json\n{\"registration_fee\": \"2,500\"}\n```"}},
				},
			}},
		}
		require.NoError(t, json.NewEncoder(w).Encode(answer))
	}))
	defer srv.Close()

	var g = NewGemini("test-key")
	g.BaseURL = srv.URL

	fee, err := g.ReadRegistrationFee(context.Background(), []byte{1})
	require.NoError(t, err)
	require.Equal(t, 2500.0, *fee)
}
