package xmltv

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="test">
  <channel id="one.example">
    <display-name>Channel One</display-name>
    <display-name>One</display-name>
    <icon src="http://img.example/one.png"/>
  </channel>
  <channel id="two.example">
    <display-name>Channel Two</display-name>
  </channel>
  <programme start="20250101180000 +0000" stop="20250101190000 +0000" channel="one.example">
    <title>Evening News</title>
    <desc>Headlines and weather.</desc>
    <category>News</category>
  </programme>
  <programme start="20250101190000 -0500" stop="20250101200000 -0500" channel="two.example">
    <title>Late Movie</title>
  </programme>
</tv>`

func collect(t *testing.T, doc string) ([]*Channel, []*Programme, []error) {
	t.Helper()
	var channels []*Channel
	var programmes []*Programme
	var errs []error
	p := &Parser{
		OnChannel: func(c *Channel) error {
			channels = append(channels, c)
			return nil
		},
		OnProgramme: func(pr *Programme) error {
			programmes = append(programmes, pr)
			return nil
		},
		OnError: func(err error) {
			errs = append(errs, err)
		},
	}
	require.NoError(t, p.Parse(strings.NewReader(doc)))
	return channels, programmes, errs
}

func TestParseDocument(t *testing.T) {
	channels, programmes, errs := collect(t, sampleDoc)
	require.Empty(t, errs)
	require.Len(t, channels, 2)
	require.Len(t, programmes, 2)

	// First display-name wins.
	assert.Equal(t, "one.example", channels[0].ID)
	assert.Equal(t, "Channel One", channels[0].DisplayName)
	assert.Equal(t, "http://img.example/one.png", channels[0].Icon)

	assert.Equal(t, "Evening News", programmes[0].Title)
	assert.Equal(t, "Headlines and weather.", programmes[0].Description)
	assert.Equal(t, "News", programmes[0].Category)
	assert.Equal(t, time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC), programmes[0].Start)

	// Offset timestamps normalize to UTC.
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), programmes[1].Start)
	assert.Equal(t, time.UTC, programmes[1].Start.Location())
}

func TestParseMalformedProgrammeIsRecoverable(t *testing.T) {
	doc := `<tv>
		<programme start="20250101180000 +0000" stop="20250101190000 +0000">
			<title>No Channel</title>
		</programme>
		<programme start="20250101180000 +0000" stop="20250101190000 +0000" channel="ok.example">
			<title>Good</title>
		</programme>
	</tv>`
	_, programmes, errs := collect(t, doc)
	require.Len(t, programmes, 1)
	assert.Equal(t, "Good", programmes[0].Title)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "without channel")
}

func TestParseTimeFormats(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"20250615120000 +0000", time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
		{"20250615120000 +0200", time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)},
		{"20250615120000", time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
		{"202506151200", time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(tt.want), "%s -> %s", tt.in, got)
	}

	_, err := ParseTime("")
	assert.Error(t, err)
	_, err = ParseTime("not-a-time")
	assert.Error(t, err)
}

func TestFormatTimeRoundTrip(t *testing.T) {
	orig := time.Date(2025, 3, 9, 7, 30, 0, 0, time.UTC)
	parsed, err := ParseTime(FormatTime(orig))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(orig))
}

func TestParseCompressedGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(sampleDoc))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var programmes []*Programme
	p := &Parser{OnProgramme: func(pr *Programme) error {
		programmes = append(programmes, pr)
		return nil
	}}
	require.NoError(t, p.ParseCompressed(&buf))
	assert.Len(t, programmes, 2)
}

func TestParseCompressedPlainPassthrough(t *testing.T) {
	var count int
	p := &Parser{OnProgramme: func(pr *Programme) error {
		count++
		return nil
	}}
	require.NoError(t, p.ParseCompressed(strings.NewReader(sampleDoc)))
	assert.Equal(t, 2, count)
}

func TestCallbackErrorAbortsParse(t *testing.T) {
	p := &Parser{OnProgramme: func(pr *Programme) error {
		return assert.AnError
	}}
	err := p.Parse(strings.NewReader(sampleDoc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "programme callback")
}
