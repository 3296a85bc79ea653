package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SyncPolicy tunes how membership commands are applied against the
// discussion platform. It is hot-reloadable so retry pressure can be
// adjusted without a restart.
type SyncPolicy struct {
	RetryAttempts  int           `mapstructure:"retryAttempts"`
	RetryDelay     time.Duration `mapstructure:"retryDelay"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	LockTTL        time.Duration `mapstructure:"lockTTL"`
}

func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		RetryAttempts:  3,
		RetryDelay:     500 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		LockTTL:        30 * time.Second,
	}
}

type SyncPolicyHolder struct {
	current atomic.Value // holds SyncPolicy
}

func NewSyncPolicyHolder() (*SyncPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/groupsync/config") // Volume-mounted config
	v.AddConfigPath("/etc/groupsync")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("GROUPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultSyncPolicy()
		v.SetDefault("sync.retryAttempts", defaults.RetryAttempts)
		v.SetDefault("sync.retryDelay", defaults.RetryDelay)
		v.SetDefault("sync.requestTimeout", defaults.RequestTimeout)
		v.SetDefault("sync.lockTTL", defaults.LockTTL)
	}

	var policy SyncPolicy
	if err := v.UnmarshalKey("sync", &policy); err != nil {
		return nil, err
	}
	if err := validateSyncPolicy(policy); err != nil {
		return nil, err
	}

	holder := &SyncPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SyncPolicy
		if err := v.UnmarshalKey("sync", &updated); err != nil {
			log.Printf("[sync-policy] reload failed: %v", err)
			return
		}
		if err := validateSyncPolicy(updated); err != nil {
			log.Printf("[sync-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[sync-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticSyncPolicyHolder pins a fixed policy, bypassing file watching.
// Used by tests and tools that do not want hot reload.
func NewStaticSyncPolicyHolder(p SyncPolicy) *SyncPolicyHolder {
	holder := &SyncPolicyHolder{}
	holder.current.Store(p)
	return holder
}

func (h *SyncPolicyHolder) Get() SyncPolicy {
	return h.current.Load().(SyncPolicy)
}

func validateSyncPolicy(p SyncPolicy) error {
	if p.RetryAttempts < 1 {
		return errors.New("sync.retryAttempts must be at least 1")
	}
	if p.RetryDelay < 0 {
		return errors.New("sync.retryDelay cannot be negative")
	}
	if p.RequestTimeout <= 0 {
		return errors.New("sync.requestTimeout must be positive")
	}
	if p.LockTTL <= 0 {
		return errors.New("sync.lockTTL must be positive")
	}
	return nil
}
