// Package app composes the Stampd loyalty-card service and manages its
// lifecycle.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data plus the scan state machine)
//	│   ├── program/        # Per-(customer, business) stamp records
//	│   ├── business/       # Merchant profiles and program configuration
//	│   ├── analytics/      # Per-day scan counters
//	│   └── session/        # User accounts and sign-in sessions
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces and sentinel errors
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   ├── postgres/       # PostgreSQL implementation for production
//	│   └── redis/          # Redis-backed daily counters
//	├── services/           # Business logic
//	│   ├── programs/       # Redemption orchestrator (the scan pipeline)
//	│   ├── businesses/     # Merchant onboarding and dashboard
//	│   ├── analytics/      # Counter queries and nightly rollup
//	│   ├── auth/           # Accounts, sessions, tokens
//	│   └── feed/           # Websocket scan-event broadcaster
//	├── httpapi/            # HTTP API handlers and routing
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
// cmd/stampd wires configuration and storage backends, then hands them to
// app.New. Services depend only on the storage interfaces, never on a
// concrete backend, so the same wiring runs against memory, postgres, or
// redis stores. The httpapi package sits above app and translates HTTP
// into service calls.
//
// Identity is always explicit: handlers resolve the caller's session and
// pass IDs down through context and arguments. No package holds ambient
// "current user" state.
package app
