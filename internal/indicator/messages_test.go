package indicator

import (
	"testing"

	"github.com/rbright/voxseal/internal/operation"
	"github.com/stretchr/testify/require"
)

func TestResolveLocaleDefaultsToEnglish(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
}

func TestIndicatorMessagesEnglish(t *testing.T) {
	msg := indicatorMessages(localeEnglish)
	require.Equal(t, "Recording…", msg.recording)
	require.Equal(t, "Comparing…", msg.pendingText(operation.KindCompare))
	require.Equal(t, "Embed complete", msg.succeededText(operation.KindEmbed))
	require.Equal(t, "Working…", msg.pendingText(operation.Kind("other")))
	require.Equal(t, "Operation failed", msg.errorText)
}
