package bills

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	periodLayout = "Jan/2006"
	dateLayout   = "2006-01-02"
	clockLayout  = "15:04:05"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatDuration renders d as 0h08m00s. Sub-second remainders are dropped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh%02dm%02ds", total/3600, total%3600/60, total%60)
}

// FormatPrice renders centavos as a Brazilian real amount, e.g. R$ 0,54.
func FormatPrice(minor int64) string {
	return "R$ " + brl.Sprint(number.Decimal(float64(minor)/100, number.Scale(2)))
}
