package mailer

import (
	"github.com/draftwise/coverletter-api/pkg/logger"
)

// DevMailer logs emails instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	logger.Info("[DEV MAIL] Verification Email",
		"to", toEmail,
		"name", toName,
		"verify_url", verifyURL,
		"token", token,
	)
	return nil
}

func (d *DevMailer) SendPurchaseReceipt(toEmail, toName, packageName string, credits int, amount int64, currency, orderID string) error {
	logger.Info("[DEV MAIL] Purchase Receipt",
		"to", toEmail,
		"name", toName,
		"package", packageName,
		"credits", credits,
		"amount", amount,
		"currency", currency,
		"order_id", orderID,
	)
	return nil
}

var _ Service = (*DevMailer)(nil)
