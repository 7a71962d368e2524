package mailer

type Service interface {
	SendVerificationEmail(toEmail, toName, verifyURL, token string) error
	SendPurchaseReceipt(toEmail, toName, packageName string, credits int, amount int64, currency, orderID string) error
}
