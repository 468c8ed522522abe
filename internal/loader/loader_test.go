package loader_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapefleet/coordinator/internal/loader"
)

func TestLoadItems(t *testing.T) {
	input := "100\n\n101\nnot-a-number\n  102  \n"
	ids, warnings := loader.LoadItems(strings.NewReader(input))
	assert.Equal(t, []int64{100, 101, 102}, ids)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "not-a-number")
}

func TestLoadProxies(t *testing.T) {
	input := strings.Join([]string{
		"# a comment",
		"",
		"1.2.3.4:1000:user1:pass1",
		"bad-line",
		"1.2.3.5:99999:user2:pass2",
		"1.2.3.6:2000:user3:pass3",
	}, "\n")

	proxies, warnings := loader.LoadProxies(strings.NewReader(input))
	require.Len(t, proxies, 2)
	assert.Equal(t, "1.2.3.4:1000:user1:pass1", proxies[0].Raw)
	assert.Equal(t, "1.2.3.4:1000", proxies[0].Server())
	assert.Equal(t, "1.2.3.6:2000:user3:pass3", proxies[1].Raw)
	require.Len(t, warnings, 2)
}

func TestParseProxyLine_InvalidPort(t *testing.T) {
	_, err := loader.ParseProxyLine("host:0:user:pass")
	assert.Error(t, err)

	_, err = loader.ParseProxyLine("host:70000:user:pass")
	assert.Error(t, err)

	p, err := loader.ParseProxyLine("host:1:user:pass")
	require.NoError(t, err)
	assert.Equal(t, "1", p.Port)
}

func TestParseItemLine_Blank(t *testing.T) {
	_, err := loader.ParseItemLine("   ")
	assert.ErrorIs(t, err, loader.ErrSkip)
}
