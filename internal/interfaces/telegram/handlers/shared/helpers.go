package shared

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/quiz"
)

// Callback data is colon separated: "<action>:<arg>:...".
const (
	ActionMenu   = "menu"
	ActionBack   = "back"
	ActionAnswer = "answer"
	ActionQuiz   = "quiz"
	ActionSet    = "set"
	ActionToggle = "toggle"
	ActionNoop   = "noop"
)

// TimeLimitSteps are the time limits offered in the settings menu, in seconds.
var TimeLimitSteps = []int{0, 15, 30, 60, 120}

var categoryIcons = map[string]string{
	quiz.CategoryAddition:       "➕",
	quiz.CategorySubtraction:    "➖",
	quiz.CategoryMultiplication: "✖️",
	quiz.CategoryDivision:       "➗",
	quiz.CategoryPercentages:    "％",
}

var fieldLabels = map[preferences.Field]string{
	preferences.FieldCategory:         "Category",
	preferences.FieldDifficulty:       "Difficulty",
	preferences.FieldTimeLimit:        "Time limit",
	preferences.FieldQuestionCount:    "Questions per quiz",
	preferences.FieldAudioEnabled:     "Audio",
	preferences.FieldHighContrast:     "High contrast",
	preferences.FieldLargeText:        "Large text",
	preferences.FieldLanguage:         "Language",
	preferences.FieldHintsEnabled:     "Hints",
	preferences.FieldRemindersEnabled: "Reminders",
	preferences.FieldPracticeFocus:    "Practice focus",
}

// CallbackData joins callback parts.
func CallbackData(action string, args ...string) string {
	return strings.Join(append([]string{action}, args...), ":")
}

// ParseCallbackData splits callback data into its action and arguments.
func ParseCallbackData(data string) (string, []string) {
	parts := strings.Split(data, ":")
	return parts[0], parts[1:]
}

// FieldLabel returns the human name of a preference field.
func FieldLabel(f preferences.Field) string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

// Humanize turns identifiers like "two_by_one" into "two by one".
func Humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// FormatValue renders a preference value for a chat message.
func FormatValue(f preferences.Field, v preferences.Value) string {
	switch v.Kind() {
	case preferences.KindBool:
		if v.AsBool() {
			return "on"
		}
		return "off"
	case preferences.KindInt:
		if f == preferences.FieldTimeLimit {
			return FormatTimeLimit(v.AsInt())
		}
		return strconv.Itoa(v.AsInt())
	default:
		return Humanize(v.AsString())
	}
}

// FormatTimeLimit renders a time limit in seconds. Zero means no limit.
func FormatTimeLimit(seconds int) string {
	if seconds <= 0 {
		return "no limit"
	}
	return fmt.Sprintf("%ds", seconds)
}

// ToggleEmoji returns the appropriate emoji for a toggle state
func ToggleEmoji(enabled bool) string {
	if enabled {
		return "✅"
	}
	return "❌"
}

// NextTimeLimit returns the step after current, wrapping around.
func NextTimeLimit(current int) int {
	for i, step := range TimeLimitSteps {
		if step == current {
			return TimeLimitSteps[(i+1)%len(TimeLimitSteps)]
		}
	}
	return TimeLimitSteps[0]
}

// CreateMainMenuKeyboard creates the standard main menu keyboard
func CreateMainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧮 Start Quiz", CallbackData(ActionMenu, "quiz")),
			tgbotapi.NewInlineKeyboardButtonData("📊 View Stats", CallbackData(ActionMenu, "stats")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❓ Help", CallbackData(ActionMenu, "help")),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", CallbackData(ActionMenu, "settings")),
		),
	)
}

// CreateStatsKeyboard creates a keyboard for stats view
func CreateStatsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧮 Start Quiz", CallbackData(ActionMenu, "quiz")),
			tgbotapi.NewInlineKeyboardButtonData("🏠 Back to Menu", CallbackData(ActionBack, "menu")),
		),
	)
}

// CreateHelpKeyboard creates a keyboard for help view
func CreateHelpKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Back to Menu", CallbackData(ActionBack, "menu")),
		),
	)
}

// CreateQuestionKeyboard offers the problem's choices plus quiz controls.
func CreateQuestionKeyboard(p *quiz.Problem, hints bool) tgbotapi.InlineKeyboardMarkup {
	var choices []tgbotapi.InlineKeyboardButton
	for _, c := range p.Choices() {
		choices = append(choices, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(c), CallbackData(ActionAnswer, strconv.Itoa(c))))
	}

	controls := []tgbotapi.InlineKeyboardButton{}
	if hints {
		controls = append(controls, tgbotapi.NewInlineKeyboardButtonData("💡 Hint", CallbackData(ActionQuiz, "hint")))
	}
	controls = append(controls, tgbotapi.NewInlineKeyboardButtonData("⏹ Stop", CallbackData(ActionQuiz, "stop")))

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(choices[:len(choices)/2]...),
		tgbotapi.NewInlineKeyboardRow(choices[len(choices)/2:]...),
		tgbotapi.NewInlineKeyboardRow(controls...),
	)
}

// CreateQuizFinishedKeyboard creates the keyboard shown after a quiz
func CreateQuizFinishedKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Again", CallbackData(ActionQuiz, "again")),
			tgbotapi.NewInlineKeyboardButtonData("📊 View Stats", CallbackData(ActionMenu, "stats")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Back to Menu", CallbackData(ActionBack, "menu")),
		),
	)
}

func setButton(label string, f preferences.Field, value string, version uint64) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(label,
		CallbackData(ActionSet, string(f), value, strconv.FormatUint(version, 10)))
}

func toggleButton(f preferences.Field, enabled bool) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(
		fmt.Sprintf("%s %s", FieldLabel(f), ToggleEmoji(enabled)),
		CallbackData(ActionToggle, string(f)))
}

// CreateSettingsKeyboard builds the settings menu for snap. Set buttons carry
// the version they were rendered from.
func CreateSettingsKeyboard(snap preferences.Snapshot) tgbotapi.InlineKeyboardMarkup {
	v := snap.Version()

	var categories []tgbotapi.InlineKeyboardButton
	for _, c := range quiz.Categories() {
		label := categoryIcons[c]
		if c == snap.Category() {
			label = "• " + label + " •"
		}
		categories = append(categories, setButton(label, preferences.FieldCategory, c, v))
	}

	d := snap.Difficulty()
	n := snap.QuestionCount()
	limit := int(snap.TimeLimit().Seconds())

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(categories...),
		tgbotapi.NewInlineKeyboardRow(
			setButton("➖", preferences.FieldDifficulty, strconv.Itoa(d-1), v),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🎯 Level %d", d), ActionNoop),
			setButton("➕", preferences.FieldDifficulty, strconv.Itoa(d+1), v),
		),
		tgbotapi.NewInlineKeyboardRow(
			setButton("➖ 5", preferences.FieldQuestionCount, strconv.Itoa(n-5), v),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("📝 %d", n), ActionNoop),
			setButton("➕ 5", preferences.FieldQuestionCount, strconv.Itoa(n+5), v),
		),
		tgbotapi.NewInlineKeyboardRow(
			setButton("⏱ "+FormatTimeLimit(limit), preferences.FieldTimeLimit, strconv.Itoa(NextTimeLimit(limit)), v),
		),
		tgbotapi.NewInlineKeyboardRow(
			toggleButton(preferences.FieldHintsEnabled, snap.HintsEnabled()),
			toggleButton(preferences.FieldRemindersEnabled, snap.RemindersEnabled()),
		),
		tgbotapi.NewInlineKeyboardRow(
			toggleButton(preferences.FieldAudioEnabled, snap.AudioEnabled()),
			toggleButton(preferences.FieldHighContrast, boolField(snap, preferences.FieldHighContrast)),
			toggleButton(preferences.FieldLargeText, boolField(snap, preferences.FieldLargeText)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏠 Back to Menu", CallbackData(ActionBack, "menu")),
		),
	)
}

func boolField(snap preferences.Snapshot, f preferences.Field) bool {
	v, _ := snap.Get(f)
	return v.AsBool()
}

// FormatSettingsText renders the current settings
func FormatSettingsText(snap preferences.Snapshot) string {
	return fmt.Sprintf(
		"⚙️ **Settings**\n\n"+
			"%s Category: **%s**\n"+
			"🎯 Difficulty: **%d**/5\n"+
			"📝 Questions per quiz: **%d**\n"+
			"⏱ Time limit: **%s**\n"+
			"🔄 Practice focus: **%s** (adapts automatically)\n\n"+
			"💡 Hints: %s\n"+
			"⏰ Reminders: %s\n"+
			"🔊 Audio: %s   🌓 High contrast: %s   🔠 Large text: %s\n\n"+
			"_Use the buttons below to adjust settings:_",
		categoryIcons[snap.Category()], snap.Category(),
		snap.Difficulty(),
		snap.QuestionCount(),
		FormatTimeLimit(int(snap.TimeLimit().Seconds())),
		Humanize(snap.PracticeFocus()),
		ToggleEmoji(snap.HintsEnabled()),
		ToggleEmoji(snap.RemindersEnabled()),
		ToggleEmoji(snap.AudioEnabled()),
		ToggleEmoji(boolField(snap, preferences.FieldHighContrast)),
		ToggleEmoji(boolField(snap, preferences.FieldLargeText)))
}

// FormatChanges lists changed fields, one per line, in field order.
func FormatChanges(changes preferences.Partial) string {
	fields := make([]preferences.Field, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	var sb strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&sb, "• %s: **%s**\n", FieldLabel(f), FormatValue(f, changes[f]))
	}
	return sb.String()
}

// FormatQuestion renders a quiz question
func FormatQuestion(p *quiz.Problem, number, total int, settings quiz.Settings) string {
	text := fmt.Sprintf("🧮 **Question %d of %d**\n\n`%s`", number, total, p.Text())
	if settings.TimeLimit > 0 {
		text += fmt.Sprintf("\n\n⏱ %s", FormatTimeLimit(int(settings.TimeLimit.Seconds())))
	}
	return text
}

// FormatStatsText formats user statistics into a readable message
func FormatStatsText(stats *quiz.UserStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"📊 **Your Practice Stats**\n\n"+
			"📝 Problems solved: %d\n"+
			"✅ Correct answers: %d\n"+
			"🎯 Accuracy: %.0f%%\n"+
			"📅 Today: %d\n",
		stats.TotalAttempts, stats.CorrectAttempts, stats.Accuracy(), stats.AttemptsSince)

	if len(stats.ByCategory) > 0 {
		sb.WriteString("\n")
		for _, c := range quiz.Categories() {
			cs, ok := stats.ByCategory[c]
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "%s %s: %d/%d\n", categoryIcons[c], c, cs.Correct, cs.Attempts)
		}
	}
	sb.WriteString("\nKeep up the great work! 🌟")
	return sb.String()
}

// GetHelpText returns the standard help text
func GetHelpText() string {
	return `🧮 **Math Practice Bot Help**

**Available Commands:**
/start - Show welcome message
/menu - Show main menu
/quiz - Start a practice quiz
/settings - Adjust your practice settings
/stats - View your progress
/help - Show this help

**How it works:**
Each quiz asks a set of problems from your chosen category. Tap an answer or type the number. When a topic keeps tripping you up, the bot shifts your practice focus to an easier variation; your own settings are never changed behind your back.

**Tips:**
- Use hints when you are stuck
- A short quiz every day beats a long one every week
- Turn on a time limit once the answers come quickly

Happy practising! 🍀`
}

// EscapeMarkdown escapes special Markdown characters
func EscapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
