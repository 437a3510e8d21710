// Package domain contains the core entity types shared across the
// application: campaigns, recipients, send logs, suppressions, bounce
// records, and provider configurations.
//
// Types here are plain structs with no behavior beyond small helpers.
// Business logic lives in the service, dispatch, and bounce packages.
package domain
