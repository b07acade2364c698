package config

const (
	defaultDataDir              = "~/.local/share/lootwatch"
	defaultLogDir               = "~/.local/share/lootwatch/logs"
	defaultDatabaseName         = "lootwatch.db"
	defaultBaseURL              = "https://www.pathofexile.com"
	defaultUserAgent            = "lootwatch/0.1 (+https://github.com/lootwatch/lootwatch)"
	defaultLeague               = "Standard"
	defaultRequestTimeout       = 30
	defaultRequestsPerSecond    = 1.0
	defaultSearchStatus         = "any"
	defaultPageSize             = 10
	defaultPageDelayMS          = 10_000
	defaultSearchCycleDelayMS   = 5_000
	defaultRealm                = "pc"
	defaultStashDelayMS         = 15_000
	defaultStashDelayIncrement  = 5_000
	defaultStashDelayMaxMS      = 30 * 60 * 1000
	defaultTabDelayMS           = 1_000
	defaultViewerURL            = "http://127.0.0.1:3117"
	defaultSelector             = ".listing"
	defaultRenderBatchSize      = 25
	defaultRenderIdleDelayMS    = 30_000
	defaultRenderCooldownMS     = 30_000
	defaultNavigationTimeout    = 30
	defaultViewportWidth        = 1280
	defaultViewportHeight       = 720
	defaultDeviceScale          = 2.0
	defaultMaxPerBatch          = 5
	defaultItemDelayMS          = 1_000
	defaultDispatchCycleDelayMS = 10_000
	defaultMaxAttempts          = 5
	defaultSendRetries          = 2
	defaultNtfyRequestTimeout   = 10
	defaultViewerBind           = "127.0.0.1:3117"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30

	// minDelayMS is the smallest accepted pacing delay for any loop.
	minDelayMS = 50
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Marketplace: Marketplace{
			BaseURL:           defaultBaseURL,
			UserAgent:         defaultUserAgent,
			League:            defaultLeague,
			RequestTimeout:    defaultRequestTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Search: Search{
			Enabled:      true,
			Status:       defaultSearchStatus,
			PageSize:     defaultPageSize,
			PageDelayMS:  defaultPageDelayMS,
			CycleDelayMS: defaultSearchCycleDelayMS,
		},
		Stash: Stash{
			Realm:            defaultRealm,
			DelayMS:          defaultStashDelayMS,
			DelayIncrementMS: defaultStashDelayIncrement,
			DelayMaxMS:       defaultStashDelayMaxMS,
			TabDelayMS:       defaultTabDelayMS,
		},
		Renderer: Renderer{
			Enabled:           true,
			ViewerURL:         defaultViewerURL,
			Selector:          defaultSelector,
			BatchSize:         defaultRenderBatchSize,
			IdleDelayMS:       defaultRenderIdleDelayMS,
			CooldownMS:        defaultRenderCooldownMS,
			NavigationTimeout: defaultNavigationTimeout,
			ViewportWidth:     defaultViewportWidth,
			ViewportHeight:    defaultViewportHeight,
			DeviceScale:       defaultDeviceScale,
		},
		Dispatch: Dispatch{
			Enabled:      true,
			MaxPerBatch:  defaultMaxPerBatch,
			ItemDelayMS:  defaultItemDelayMS,
			CycleDelayMS: defaultDispatchCycleDelayMS,
			MaxAttempts:  defaultMaxAttempts,
			SendRetries:  defaultSendRetries,
			Ntfy: Ntfy{
				RequestTimeout: defaultNtfyRequestTimeout,
			},
		},
		Viewer: Viewer{
			Enabled: true,
			Bind:    defaultViewerBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
