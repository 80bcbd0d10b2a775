package constants

const (
	// Embed colors.
	DefaultEmbedColor = 0x312D2B
	InfoEmbedColor    = 0x3498DB
	SuccessEmbedColor = 0x2ECC71
	WarningEmbedColor = 0xF1C40F
	ErrorEmbedColor   = 0xE74C3C

	// Reactions.
	ConfirmEmoji = "✅"
	CancelEmoji  = "❌"
	DeniedEmoji  = "🚫"

	// NotApplicable is shown in place of missing values.
	NotApplicable = "N/A"
)
