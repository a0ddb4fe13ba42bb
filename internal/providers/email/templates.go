package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// PurchaseConfirmation is the data of the buyer receipt.
type PurchaseConfirmation struct {
	Brand      string
	PlanName   string
	Amount     string
	ChannelURL string
}

var purchaseTemplate = template.Must(template.New("purchase").Parse(`<p>Thanks for subscribing to <strong>{{.Brand}}</strong>.</p>
<p>Plan: {{.PlanName}}<br>Paid: {{.Amount}}</p>
<p>Join the channel: <a href="{{.ChannelURL}}">{{.ChannelURL}}</a></p>`))

// RenderPurchaseConfirmation builds the receipt sent after a completed sale.
func RenderPurchaseConfirmation(to string, data PurchaseConfirmation) (Message, error) {
	var body bytes.Buffer
	if err := purchaseTemplate.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render purchase confirmation: %w", err)
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Your %s access", data.Brand),
		HTML:    body.String(),
		Text:    fmt.Sprintf("Thanks for subscribing to %s (%s, %s). Join: %s", data.Brand, data.PlanName, data.Amount, data.ChannelURL),
	}, nil
}
