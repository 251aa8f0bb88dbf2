package config

import "strings"

// envKeyReplacer maps nested keys onto env names: server.user_id -> SETLIST_SERVER_USER_ID
var envKeyReplacer = strings.NewReplacer(".", "_")
