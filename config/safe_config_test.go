package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testConfig(id string) *Config {
	return &Config{
		Node: NodeConfig{Org: "neuroacq", ID: id, Environment: "test"},
	}
}

func TestSafeConfigConcurrentReadersAndWriters(t *testing.T) {
	sc := NewSafeConfig(testConfig("rig01"))

	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			for range 500 {
				cfg := sc.Get()
				if cfg == nil {
					return fmt.Errorf("Get returned nil")
				}
				if id := cfg.Node.ID; id != "rig01" && id != "rig02" {
					return fmt.Errorf("unexpected node id %q", id)
				}
			}
			return nil
		})
	}
	for range 4 {
		g.Go(func() error {
			for range 50 {
				if err := sc.Update(testConfig("rig02")); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, "rig02", sc.Get().Node.ID)
}

func TestSafeConfigNilBase(t *testing.T) {
	sc := NewSafeConfig(nil)

	cfg := sc.Get()
	require.NotNil(t, cfg)

	err := sc.Update(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}

func TestSafeConfigRejectsInvalidUpdate(t *testing.T) {
	sc := NewSafeConfig(testConfig("rig01"))

	bad := testConfig("rig01")
	bad.Node.ID = ""
	err := sc.Update(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node.id is required")

	// The previous config survives a failed update.
	assert.Equal(t, "rig01", sc.Get().Node.ID)
}

func TestSafeConfigGetReturnsIsolatedCopies(t *testing.T) {
	base := testConfig("rig01")
	base.NATS.URLs = []string{"nats://a:4222", "nats://b:4222"}
	sc := NewSafeConfig(base)

	first := sc.Get()
	first.Node.ID = "scribbled"
	first.NATS.URLs = append(first.NATS.URLs, "nats://c:4222")

	second := sc.Get()
	assert.Equal(t, "rig01", second.Node.ID)
	assert.Len(t, second.NATS.URLs, 2)
}

func TestConfigClone(t *testing.T) {
	t.Run("nil receiver yields empty config", func(t *testing.T) {
		var c *Config
		require.NotNil(t, c.Clone())
	})

	t.Run("empty config round trips", func(t *testing.T) {
		clone := (&Config{}).Clone()
		require.NotNil(t, clone)
		assert.Equal(t, &Config{}, clone)
	})

	t.Run("clone does not share slices", func(t *testing.T) {
		orig := &Config{
			Node: NodeConfig{Org: "neuroacq", ID: "rig01", Environment: "dev"},
			NATS: NATSConfig{
				URLs:          []string{"nats://localhost:4222"},
				ReconnectWait: 2 * time.Second,
			},
			Tap: TapConfig{SubjectPrefix: "ephys", DecodeWorkers: 4},
		}

		clone := orig.Clone()
		orig.NATS.URLs = append(orig.NATS.URLs, "nats://extra:4222")

		assert.Len(t, clone.NATS.URLs, 1)
		assert.Equal(t, "rig01", clone.Node.ID)
		assert.Equal(t, 4, clone.Tap.DecodeWorkers)
		assert.Equal(t, 2*time.Second, clone.NATS.ReconnectWait)
	})
}
