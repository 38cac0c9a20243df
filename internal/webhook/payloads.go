package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
)

// Topic is the X-Shopify-Topic header value.
type Topic string

const (
	TopicDiscountCreate Topic = "discounts/create"
	TopicDiscountUpdate Topic = "discounts/update"
	TopicDiscountDelete Topic = "discounts/delete"
	TopicOrderCreate    Topic = "orders/create"
	TopicOrderPaid      Topic = "orders/paid"
	TopicOrderUpdated   Topic = "orders/updated"
)

func (t Topic) IsDiscount() bool {
	switch t {
	case TopicDiscountCreate, TopicDiscountUpdate, TopicDiscountDelete:
		return true
	}
	return false
}

func (t Topic) IsOrder() bool {
	switch t {
	case TopicOrderCreate, TopicOrderPaid, TopicOrderUpdated:
		return true
	}
	return false
}

// flexID accepts Shopify ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(str))
		return nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return fmt.Errorf("id %s is not an integer", s)
	}
	*f = flexID(s)
	return nil
}

type discountCode struct {
	Code string `json:"code"`
}

type rawDiscount struct {
	AdminGraphQLAPIID string         `json:"admin_graphql_api_id"`
	ID                flexID         `json:"id"`
	Title             string         `json:"title"`
	Status            string         `json:"status"`
	Code              string         `json:"code"`
	Codes             []discountCode `json:"codes"`
}

// DiscountEvent is a validated discounts/* payload.
type DiscountEvent struct {
	DiscountID string
	Title      string
	Status     string
	Code       string
}

func DecodeDiscount(body []byte) (DiscountEvent, error) {
	var raw rawDiscount
	if err := json.Unmarshal(body, &raw); err != nil {
		return DiscountEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	ev := DiscountEvent{
		DiscountID: strings.TrimSpace(raw.AdminGraphQLAPIID),
		Title:      strings.TrimSpace(raw.Title),
		Status:     strings.TrimSpace(raw.Status),
		Code:       strings.TrimSpace(raw.Code),
	}
	if ev.DiscountID == "" && raw.ID != "" {
		ev.DiscountID = shopify.DiscountGID(string(raw.ID))
	}
	if ev.Code == "" {
		for _, c := range raw.Codes {
			if code := strings.TrimSpace(c.Code); code != "" {
				ev.Code = code
				break
			}
		}
	}
	if ev.DiscountID == "" {
		return DiscountEvent{}, fmt.Errorf("%w: discount id missing", ErrInvalidPayload)
	}
	return ev, nil
}

type rawOrder struct {
	ID                   flexID `json:"id"`
	Name                 string `json:"name"`
	OrderNumber          flexID `json:"order_number"`
	FinancialStatus      string `json:"financial_status"`
	DiscountApplications []struct {
		Type  string `json:"type"`
		Code  string `json:"code"`
		Title string `json:"title"`
	} `json:"discount_applications"`
	DiscountCodes []discountCode `json:"discount_codes"`
}

// OrderEvent is a validated orders/* payload.
type OrderEvent struct {
	OrderID         string
	Name            string
	FinancialStatus string
	// Codes holds every distinct discount code applied to the order, in payload order.
	Codes []string
}

// Reference identifies the order in employee codes and logs.
func (o OrderEvent) Reference() string {
	if o.Name != "" {
		return o.Name
	}
	return o.OrderID
}

func (o OrderEvent) IsPaid() bool {
	return strings.EqualFold(o.FinancialStatus, "paid")
}

func DecodeOrder(body []byte) (OrderEvent, error) {
	var raw rawOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if raw.ID == "" {
		return OrderEvent{}, fmt.Errorf("%w: order id missing", ErrInvalidPayload)
	}
	ev := OrderEvent{
		OrderID:         string(raw.ID),
		Name:            strings.TrimSpace(raw.Name),
		FinancialStatus: strings.TrimSpace(raw.FinancialStatus),
	}
	if ev.Name == "" && raw.OrderNumber != "" {
		ev.Name = "#" + string(raw.OrderNumber)
	}

	seen := map[string]bool{}
	add := func(code string) {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		ev.Codes = append(ev.Codes, code)
	}
	for _, app := range raw.DiscountApplications {
		if app.Type == "discount_code" {
			add(app.Code)
		}
	}
	if len(ev.Codes) == 0 {
		for _, dc := range raw.DiscountCodes {
			add(dc.Code)
		}
	}
	return ev, nil
}
