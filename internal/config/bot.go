package config

import (
	"fmt"
	"strings"
)

// BotConfig controls the persona and how replies are shaped.
type BotConfig struct {
	SystemPrompt  string `yaml:"system_prompt"`   // Prepended to every request, never stored
	ResetCommand  string `yaml:"reset_command"`   // Clears the author's history
	ResetReply    string `yaml:"reset_reply"`     // Sent after a reset
	ErrorPrefix   string `yaml:"error_prefix"`    // Prefix for in-channel error replies
	MaxReplyChars int    `yaml:"max_reply_chars"` // Replies longer than this are cut
	Ellipsis      string `yaml:"ellipsis"`        // Appended to cut replies
	HistoryLimit  int    `yaml:"history_limit"`   // Messages kept per user (even)
}

const (
	DefaultSystemPrompt = "You are Crazylearner, a cool, smart, and approachable AI companion. " +
		"Speak naturally like a friend who’s into tech, hacking, or learning stuff. " +
		"Keep sentences short and casual, using contractions. " +
		"Add one emoji naturally. " +
		"Avoid hashtags, long motivational speeches, or overly formal phrasing. " +
		"Make it feel like chatting with a clever, confident, and slightly edgy friend."
	DefaultResetCommand  = "!reset"
	DefaultResetReply    = "I've cleared our previous chats. Starting fresh! 💜"
	DefaultErrorPrefix   = "Error: "
	DefaultMaxReplyChars = 1900
	DefaultEllipsis      = "..."
	DefaultHistoryLimit  = 16
)

func (b *BotConfig) applyDefaults() {
	if b.SystemPrompt == "" {
		b.SystemPrompt = DefaultSystemPrompt
	}
	if b.ResetCommand == "" {
		b.ResetCommand = DefaultResetCommand
	}
	if b.ResetReply == "" {
		b.ResetReply = DefaultResetReply
	}
	if b.ErrorPrefix == "" {
		b.ErrorPrefix = DefaultErrorPrefix
	}
	if b.MaxReplyChars == 0 {
		b.MaxReplyChars = DefaultMaxReplyChars
	}
	if b.Ellipsis == "" {
		b.Ellipsis = DefaultEllipsis
	}
	if b.HistoryLimit == 0 {
		b.HistoryLimit = DefaultHistoryLimit
	}
}

// Validate checks the bot settings.
func (b BotConfig) Validate() error {
	if strings.TrimSpace(b.SystemPrompt) == "" {
		return fmt.Errorf("bot.system_prompt is required")
	}
	if strings.TrimSpace(b.ResetCommand) == "" {
		return fmt.Errorf("bot.reset_command is required")
	}
	if b.MaxReplyChars < 1 {
		return fmt.Errorf("invalid bot.max_reply_chars: %d (must be positive)", b.MaxReplyChars)
	}
	// Discord rejects messages over 2000 characters.
	if b.MaxReplyChars+len([]rune(b.Ellipsis)) > 2000 {
		return fmt.Errorf("invalid bot.max_reply_chars: %d (reply plus ellipsis exceeds 2000)", b.MaxReplyChars)
	}
	if b.HistoryLimit < 2 || b.HistoryLimit%2 != 0 {
		return fmt.Errorf("invalid bot.history_limit: %d (must be an even number >= 2)", b.HistoryLimit)
	}
	return nil
}
