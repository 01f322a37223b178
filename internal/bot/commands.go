package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/skinlog-bot/internal/i18n"
	"github.com/rs/zerolog/log"
)

// Command defines a bot command with its Telegram menu description per language.
type Command struct {
	Name         string // Command name without slash (e.g., "start")
	Descriptions map[i18n.Language]string
}

// botCommands defines all available bot commands.
// This is the single source of truth for command definitions.
var botCommands = []Command{
	{Name: "start", Descriptions: map[i18n.Language]string{
		i18n.Korean:  "피부 분석 시작",
		i18n.English: "Start a skin analysis",
	}},
	{Name: "reset", Descriptions: map[i18n.Language]string{
		i18n.Korean:  "처음으로 돌아가기",
		i18n.English: "Start over",
	}},
	{Name: "lang", Descriptions: map[i18n.Language]string{
		i18n.Korean:  "언어 변경 (한국어/English)",
		i18n.English: "Switch language (한국어/English)",
	}},
	{Name: "help", Descriptions: map[i18n.Language]string{
		i18n.Korean:  "도움말",
		i18n.English: "Show help",
	}},
	{Name: "version", Descriptions: map[i18n.Language]string{
		i18n.Korean:  "버전 정보",
		i18n.English: "Show version info",
	}},
}

func commandsFor(lang i18n.Language) []tgbotapi.BotCommand {
	commands := make([]tgbotapi.BotCommand, len(botCommands))
	for i, cmd := range botCommands {
		commands[i] = tgbotapi.BotCommand{
			Command:     cmd.Name,
			Description: cmd.Descriptions[lang],
		}
	}
	return commands
}

// RegisterCommands sets the bot's command menu in Telegram: the default
// language for everyone and a translated menu for the other language.
// This should be called once at startup.
func RegisterCommands(tg BotAPI) {
	scope := tgbotapi.NewBotCommandScopeDefault()
	for _, lang := range i18n.Languages() {
		var config tgbotapi.SetMyCommandsConfig
		if lang == i18n.Default {
			config = tgbotapi.NewSetMyCommands(commandsFor(lang)...)
		} else {
			config = tgbotapi.NewSetMyCommandsWithScopeAndLanguage(scope, string(lang), commandsFor(lang)...)
		}
		if _, err := tg.Request(config); err != nil {
			log.Error().Err(err).Str("lang", string(lang)).Msg("failed to set bot commands")
			continue
		}
		log.Info().Int("count", len(botCommands)).Str("lang", string(lang)).Msg("registered bot commands")
	}
}
