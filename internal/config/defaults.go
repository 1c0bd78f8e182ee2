package config

const (
	defaultDataDir            = "~/.local/share/drafter"
	defaultLogDir             = "~/.local/share/drafter/logs"
	defaultWebhookBind        = "127.0.0.1:7486"
	defaultProviderTimeout    = 30
	defaultSignedTTL          = 3600
	defaultMaxRetries         = 3
	defaultMaxConcurrentPolls = 10
	defaultPollIntervalMin    = 15
	defaultPollIntervalMax    = 120
	defaultBackoffFactor      = 2.0
	defaultCircuitThreshold   = 5
	defaultCircuitWindow      = 60
	defaultCircuitCooldown    = 120
	defaultLeaseGrace         = 120
	defaultAuthoringTimeout   = 3600
	defaultExchangeTimeout    = 900
	defaultDetailCeiling      = 20.0
	defaultDeepHierarchy      = 12
	defaultLowScore           = 0.5
	defaultRecommendations    = 5
	defaultSubjectPrefix      = "drafter"
	defaultNotifyTimeout      = 10
	defaultQueuePollInterval  = 5
	defaultErrorRetry         = 10
	defaultLeaseSweep         = 30
	defaultLogFormat          = "auto"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			WebhookBind: defaultWebhookBind,
		},
		Provider: Provider{
			RequestTimeout: defaultProviderTimeout,
		},
		Reference: Reference{
			SignedTTL: defaultSignedTTL,
		},
		Translation: Translation{
			MaxRetries:         defaultMaxRetries,
			MaxConcurrentPolls: defaultMaxConcurrentPolls,
			PollIntervalMin:    defaultPollIntervalMin,
			PollIntervalMax:    defaultPollIntervalMax,
			BackoffFactor:      defaultBackoffFactor,
			CircuitThreshold:   defaultCircuitThreshold,
			CircuitWindow:      defaultCircuitWindow,
			CircuitCooldown:    defaultCircuitCooldown,
			LeaseGrace:         defaultLeaseGrace,
			AuthoringTimeout:   defaultAuthoringTimeout,
			ExchangeTimeout:    defaultExchangeTimeout,
		},
		Scoring: Scoring{
			DetailCeiling:       defaultDetailCeiling,
			DeepHierarchyDepth:  defaultDeepHierarchy,
			LowScoreThreshold:   defaultLowScore,
			RecommendationLimit: defaultRecommendations,
		},
		Notifications: Notifications{
			SubjectPrefix:  defaultSubjectPrefix,
			RequestTimeout: defaultNotifyTimeout,
			Terminal:       true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetry,
			LeaseSweepInterval: defaultLeaseSweep,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
