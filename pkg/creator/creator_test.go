package creator

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoHandlePreference(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"both set, primary wins", Profile{TwitchUsername: "primary", TwitchChannel: "legacy"}, "primary"},
		{"only legacy set", Profile{TwitchChannel: "legacy"}, "legacy"},
		{"blank primary falls through", Profile{TwitchUsername: "  ", TwitchChannel: "legacy"}, "legacy"},
		{"neither set", Profile{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.VideoHandle())
		})
	}
}

func TestHasHandle(t *testing.T) {
	assert.True(t, Profile{XUsername: "bar"}.HasHandle())
	assert.True(t, Profile{TwitchChannel: "foo"}.HasHandle())
	assert.False(t, Profile{Name: "nobody"}.HasHandle())
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"monero", "privacy"}, Profile{SearchTerms: " monero, ,privacy ,"}.Tags())
	tags := Profile{}.Tags()
	require.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestPlatformJSON(t *testing.T) {
	out, err := json.Marshal(LiveStatus{ID: "1", Tags: []string{}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"platform":null`)
	assert.NotContains(t, string(out), "startedAt")

	out, err = json.Marshal(LiveStatus{ID: "1", Platform: PlatformVideo})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"platform":"video"`)

	var s LiveStatus
	require.NoError(t, json.Unmarshal([]byte(`{"platform":null}`), &s))
	assert.Equal(t, PlatformNone, s.Platform)
}

func TestPrintLiveStatuses(t *testing.T) {
	statuses := []LiveStatus{
		{Name: "Foo", Platform: PlatformVideo, IsLive: true, ViewerCount: 50, StreamURL: "https://twitch.tv/foo"},
		{Name: "Bar", StreamURL: "https://twitter.com/bar"},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintLiveStatuses(&buf, statuses, "npvu", " ", false))
	assert.Equal(t, "Foo video 50 https://twitch.tv/foo\nBar - 0 https://twitter.com/bar\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintLiveStatuses(&buf, statuses, "nl", ",", true))
	assert.Equal(t, "Foo,live\n", buf.String())

	assert.Error(t, PrintLiveStatuses(&buf, statuses, "x", " ", false))
}
