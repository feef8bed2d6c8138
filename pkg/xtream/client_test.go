package xtream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reybeld94/mediarr/pkg/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(action string, w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/player_api.php", r.URL.Path)
		require.Equal(t, "user", r.URL.Query().Get("username"))
		require.Equal(t, "pass", r.URL.Query().Get("password"))
		handler(r.URL.Query().Get("action"), w, r)
	}))
}

func TestGetLiveCategories(t *testing.T) {
	srv := newTestServer(t, func(action string, w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "get_live_categories", action)
		_, _ = w.Write([]byte(`[
			{"category_id":"1","category_name":"News","parent_id":0},
			{"category_id":2,"category_name":"Sports","parent_id":"0"}
		]`))
	})
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	cats, err := c.GetLiveCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "1", cats[0].CategoryID.String())
	assert.Equal(t, "News", cats[0].CategoryName)
	// Numeric category_id decodes through FlexString.
	assert.Equal(t, "2", cats[1].CategoryID.String())
}

func TestGetLiveStreamsFiltersByCategory(t *testing.T) {
	srv := newTestServer(t, func(action string, w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "get_live_streams", action)
		require.Equal(t, "7", r.URL.Query().Get("category_id"))
		_, _ = w.Write([]byte(`[{"stream_id":"101","name":"Channel One","epg_channel_id":"one.example","category_id":"7"}]`))
	})
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	streams, err := c.GetLiveStreams(context.Background(), &StreamsOptions{CategoryID: "7"})
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, int64(101), streams[0].StreamID.Int())
	assert.Equal(t, "one.example", streams[0].EPGChannelID)
}

func TestListActionNonArrayIsInvalid(t *testing.T) {
	srv := newTestServer(t, func(action string, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user_info":{"auth":0,"message":"bad credentials"}}`))
	})
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	_, err := c.GetVODCategories(context.Background())
	require.Error(t, err)
	assert.Equal(t, fetch.KindInvalid, fetch.KindOf(err))
}

func TestGetSeriesInfo(t *testing.T) {
	srv := newTestServer(t, func(action string, w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "get_series_info", action)
		require.Equal(t, "55", r.URL.Query().Get("series_id"))
		_, _ = w.Write([]byte(`{
			"info":{"name":"Some Show","tmdb_id":"4242"},
			"seasons":[{"season_number":1,"episode_count":2,"name":"Season 1"}],
			"episodes":{"1":[{"id":"9001","episode_num":1,"title":"Pilot","container_extension":"mkv","season":1}]}
		}`))
	})
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	info, err := c.GetSeriesInfo(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, "Some Show", info.Info.Name)
	assert.Equal(t, int64(4242), info.Info.TMDBId.Int())
	require.Len(t, info.Episodes["1"], 1)
	assert.Equal(t, int64(9001), info.Episodes["1"][0].ID.Int())
}

func TestAuthInfo(t *testing.T) {
	srv := newTestServer(t, func(action string, w http.ResponseWriter, r *http.Request) {
		require.Empty(t, action)
		_, _ = w.Write([]byte(`{"user_info":{"username":"user","auth":1,"status":"Active"},"server_info":{"url":"example.com","port":"8080"}}`))
	})
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	info, err := c.GetAuthInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, info.UserInfo.IsAuthenticated())
	assert.Equal(t, int64(8080), info.ServerInfo.Port.Int())
}

func TestStreamURLs(t *testing.T) {
	c := NewClient("http://panel.example:8080/", "u", "p")
	assert.Equal(t, "http://panel.example:8080/live/u/p/42.ts", c.LiveStreamURL(42, ""))
	assert.Equal(t, "http://panel.example:8080/live/u/p/42.m3u8", c.LiveStreamURL(42, "m3u8"))
	assert.Equal(t, "http://panel.example:8080/movie/u/p/7.mp4", c.VODStreamURL(7, ""))
	assert.Equal(t, "http://panel.example:8080/movie/u/p/7.mkv", c.VODStreamURL(7, "mkv"))
	assert.Equal(t, "http://panel.example:8080/series/u/p/9.mkv", c.SeriesStreamURL(9, ""))
}

func TestStreamURLStandalone(t *testing.T) {
	assert.Equal(t, "http://h/movie/u/p/1.mp4", StreamURL("http://h/", "u", "p", "vod", 1, ""))
	assert.Equal(t, "http://h/live/u/p/2.ts", StreamURL("http://h", "u", "p", "live", 2, ""))
	assert.Equal(t, "http://h/series/u/p/3.avi", StreamURL("http://h", "u", "p", "series", 3, "avi"))
}
