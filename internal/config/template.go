// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "localhost"
host = "localhost"

# Port
# Default: 7476
port = 7476

# Base URL
# Set custom baseUrl eg /imbiber/ to serve the API under a subpath
# Default: "/"
#baseUrl = "/"

# API key
# Clients send it in the X-API-Key header
apiKey = "{{apiKey}}"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/imbiber.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Data directory
# Defaults to the directory of this file
#dataDir = ""

# Database path
# Default: imbiber.db inside dataDir
#databasePath = ""

# Google Books
# An API key raises the anonymous quota
#googleBooksApiKey = ""
#googleBooksTimeout = 15
#googleBooksRequestsPerSecond = 5

# Language used when a search does not name one
#defaultLocale = "en"

# New release checks
# How often every user's followed authors are checked
#checkInterval = "24h"

# Minimum minutes between two checks for the same user
#checkCooldownMinutes = 60

# Keep cooldowns across restarts. Off: a restart clears them
#persistCooldowns = false

# Push notifications
# shoutrrr service URLs, eg "ntfy://ntfy.sh/my-books" or "discord://token@id"
#notificationsEnabled = false
#notificationUrls = []

# Metrics
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
#metricsBasicAuthUsers = "user:password"

# Profiling
#pprofEnabled = false

# Disable API key auth. Only clients in authDisabledAllowedCIDRs are served
#authDisabled = false
#authDisabledAllowedCIDRs = ["127.0.0.1/32"]

# Extra origins allowed by CORS
#corsAllowedOrigins = []
`
