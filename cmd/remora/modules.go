package main

// First-party modules compiled into the default binary.
import (
	_ "github.com/quietloop/remora/internal/gateway"
	_ "github.com/quietloop/remora/modules/channel/telegram"
	_ "github.com/quietloop/remora/modules/provider/anthropic"
	_ "github.com/quietloop/remora/modules/provider/gemini"
	_ "github.com/quietloop/remora/modules/provider/openai"
	_ "github.com/quietloop/remora/modules/store/sqlite"
)
