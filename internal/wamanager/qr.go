package wamanager

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// renderQR turns the raw challenge string into a PNG data URI so
// dashboards can show the code without a client-side QR library. The
// raw string is still exposed for clients that render themselves.
func renderQR(code string) string {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		zap.L().Warn("wamanager: qr render failed", zap.Error(err))
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
