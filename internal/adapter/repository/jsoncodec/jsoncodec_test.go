package jsoncodec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const legacyDocument = `{
  "abc123": {
    "originalUrl": "http://example.com",
    "createdAt": "2024-05-01T10:00:00.000Z",
    "expiresAt": "2024-05-01T10:01:00.000Z",
    "clicks": [
      {
        "timestamp": "2024-05-01T10:00:05.123Z",
        "referrer": "Direct"
      },
      {
        "timestamp": "2024-05-01T10:00:06.000Z",
        "referrer": "https://news.example.com/",
        "userAgent": "curl/8.0"
      }
    ],
    "owner": {"name": "bob"}
  },
  "xyz789": {
    "originalUrl": "https://example.org/path?q=1&r=2",
    "createdAt": "2024-05-01T11:00:00Z",
    "expiresAt": "2024-05-01T11:30:00Z",
    "clicks": []
  }
}`

func TestDecode(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		for _, data := range []string{"", "   \n"} {
			urls, err := Decode([]byte(data))

			assert.NoError(t, err)
			assert.Empty(t, urls)
			assert.NotNil(t, urls)
		}
	})

	t.Run("empty object", func(t *testing.T) {
		urls, err := Decode([]byte(`{}`))

		assert.NoError(t, err)
		assert.Empty(t, urls)
	})

	t.Run("invalid documents", func(t *testing.T) {
		docs := map[string]string{
			"not json":           `{"abc123":`,
			"not an object":      `[]`,
			"missing url":        `{"a":{"createdAt":"2024-05-01T10:00:00.000Z","expiresAt":"2024-05-01T10:00:00.000Z"}}`,
			"bad created at":     `{"a":{"originalUrl":"http://x.io","createdAt":"yesterday","expiresAt":"2024-05-01T10:00:00.000Z"}}`,
			"bad clicks":         `{"a":{"originalUrl":"http://x.io","createdAt":"2024-05-01T10:00:00.000Z","expiresAt":"2024-05-01T10:00:00.000Z","clicks":{}}}`,
			"click without time": `{"a":{"originalUrl":"http://x.io","createdAt":"2024-05-01T10:00:00.000Z","expiresAt":"2024-05-01T10:00:00.000Z","clicks":[{"referrer":"Direct"}]}}`,
		}

		for name, doc := range docs {
			urls, err := Decode([]byte(doc))

			assert.Error(t, err, name)
			assert.Nil(t, urls, name)
		}
	})

	t.Run("legacy document", func(t *testing.T) {
		urls, err := Decode([]byte(legacyDocument))
		require.NoError(t, err)
		require.Len(t, urls, 2)

		url := urls["abc123"]
		assert.Equal(t, "abc123", url.ShortCode)
		assert.Equal(t, "http://example.com", url.OriginalURL)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), url.CreatedAt)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC), url.ExpiresAt)
		require.Len(t, url.Clicks, 2)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 5, 123e6, time.UTC), url.Clicks[0].Timestamp)
		assert.Equal(t, entity.DirectReferrer, url.Clicks[0].Referrer)
		assert.Nil(t, url.Clicks[0].Extensions)
		assert.JSONEq(t, `"curl/8.0"`, string(url.Clicks[1].Extensions["userAgent"]))
		assert.JSONEq(t, `{"name":"bob"}`, string(url.Extensions["owner"]))

		assert.Empty(t, urls["xyz789"].Clicks)
		assert.Nil(t, urls["xyz789"].Extensions)
	})
}

func TestEncode(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		data, err := Encode(map[string]*entity.URL{})

		assert.NoError(t, err)
		assert.Equal(t, "{}", string(data))
	})

	t.Run("layout", func(t *testing.T) {
		created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		data, err := Encode(map[string]*entity.URL{
			"abc123": {
				ShortCode:   "abc123",
				OriginalURL: "http://example.com",
				CreatedAt:   created,
				ExpiresAt:   created.Add(time.Minute),
				Clicks: []entity.Click{
					{Timestamp: created.Add(1500 * time.Millisecond), Referrer: entity.DirectReferrer},
				},
				Extensions: map[string]json.RawMessage{"owner": json.RawMessage(`"bob"`)},
			},
		})
		require.NoError(t, err)

		want := `{
  "abc123": {
    "clicks": [
      {
        "referrer": "Direct",
        "timestamp": "2024-05-01T10:00:01.500Z"
      }
    ],
    "createdAt": "2024-05-01T10:00:00.000Z",
    "expiresAt": "2024-05-01T10:01:00.000Z",
    "originalUrl": "http://example.com",
    "owner": "bob"
  }
}`
		assert.Equal(t, want, string(data))
	})

	t.Run("html characters are not escaped", func(t *testing.T) {
		created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		data, err := Encode(map[string]*entity.URL{
			"abc123": {
				ShortCode:   "abc123",
				OriginalURL: "https://example.org/path?q=1&r=<2>",
				CreatedAt:   created,
				ExpiresAt:   created.Add(time.Minute),
				Clicks: []entity.Click{
					{Timestamp: created, Referrer: "https://news.example.com/?a=1&b=2"},
				},
			},
		})
		require.NoError(t, err)

		assert.Contains(t, string(data), `"originalUrl": "https://example.org/path?q=1&r=<2>"`)
		assert.Contains(t, string(data), `"referrer": "https://news.example.com/?a=1&b=2"`)
		assert.NotContains(t, string(data), `\u0026`)
		assert.NotContains(t, string(data), `\u003c`)
	})
}

func TestRoundTrip(t *testing.T) {
	urls, err := Decode([]byte(legacyDocument))
	require.NoError(t, err)

	first, err := Encode(urls)
	require.NoError(t, err)

	decoded, err := Decode(first)
	require.NoError(t, err)
	assert.Equal(t, urls, decoded)

	second, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := time.Date(2024, 5, 1, 13, 0, 0, 123456789, loc)

	s := FormatTime(ts)
	assert.Equal(t, "2024-05-01T10:00:00.123Z", s)

	parsed, err := ParseTime(s)
	assert.NoError(t, err)
	assert.Equal(t, ts.UTC().Truncate(time.Millisecond), parsed)
}
