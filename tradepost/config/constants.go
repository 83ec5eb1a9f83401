package config

import "time"

// Application-wide constants organized by domain

// Database and Performance Constants
const (
	// Timeouts
	DefaultQueryTimeout  = 10 * time.Second
	TransitionTimeout    = 10 * time.Second
	SideEffectTimeout    = 5 * time.Second
	NetworkDialTimeout   = 5 * time.Second
	MongoSelectTimeout   = 10 * time.Second
	ShutdownGracePeriod  = 15 * time.Second
	StartupTimeout       = 2 * time.Minute

	// Terminal-entity read cache
	TerminalCacheSize = 10000

	// Retries
	MaxConnRetries = 3
	MaxIDRetries   = 5
)

// Commerce Constants
const (
	// Pending barter proposals are retired after this window.
	BarterProposalTTL   = 7 * 24 * time.Hour
	BarterExpirySweep   = 15 * time.Minute

	// Opaque entity id length (base32 characters).
	EntityIDLength = 12

	// Notification list page size
	NotificationPageSize = 25
	AuditPageSize        = 50
)
