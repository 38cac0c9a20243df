package shopify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
)

const discountGIDPrefix = "gid://shopify/DiscountCodeNode/"

// Discount is the subset of a remote code discount the service reads back.
type Discount struct {
	ID     string
	Title  string
	Status string
	Codes  []string
}

type discountNodeData struct {
	CodeDiscountNode *struct {
		ID           string `json:"id"`
		CodeDiscount *struct {
			Title  string `json:"title"`
			Status string `json:"status"`
			Codes  struct {
				Nodes []struct {
					Code string `json:"code"`
				} `json:"nodes"`
			} `json:"codes"`
		} `json:"codeDiscount"`
	} `json:"codeDiscountNode"`
}

type discountCreateData struct {
	DiscountCodeBasicCreate struct {
		CodeDiscountNode *struct {
			ID string `json:"id"`
		} `json:"codeDiscountNode"`
		UserErrors []userError `json:"userErrors"`
	} `json:"discountCodeBasicCreate"`
}

type discountDeactivateData struct {
	DiscountCodeDeactivate struct {
		CodeDiscountNode *struct {
			ID string `json:"id"`
		} `json:"codeDiscountNode"`
		UserErrors []userError `json:"userErrors"`
	} `json:"discountCodeDeactivate"`
}

// DiscountGID turns a numeric webhook id into an Admin API global id.
// Values that already are global ids are returned unchanged.
func DiscountGID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return discountGIDPrefix + id
}

// MapStatus folds a remote discount status into the local shopify_status.
func MapStatus(remote string) models.ShopifyStatus {
	if strings.EqualFold(strings.TrimSpace(remote), "ACTIVE") {
		return models.ShopifyActive
	}
	return models.ShopifyDisabled
}

// CreateDiscount creates the single-use fixed amount discount for code and
// returns its global id.
func (c *Client) CreateDiscount(ctx context.Context, code string) (string, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return "", errors.New("shopify: discount code is required")
	}
	startsAt := time.Now().UTC()

	query := `
mutation discountCodeBasicCreate($basicCodeDiscount: DiscountCodeBasicInput!) {
	discountCodeBasicCreate(basicCodeDiscount: $basicCodeDiscount) {
		codeDiscountNode { id }
		userErrors { field message code }
	}
}`
	input := map[string]any{
		"title":                  models.DiscountTitlePrefix + code,
		"code":                   code,
		"startsAt":               startsAt.Format(time.RFC3339),
		"endsAt":                 startsAt.Add(models.DiscountValidity).Format(time.RFC3339),
		"usageLimit":             models.DiscountUsageLimit,
		"appliesOncePerCustomer": true,
		"customerSelection":      map[string]any{"all": true},
		"customerGets": map[string]any{
			"value": map[string]any{
				"discountAmount": map[string]any{
					"amount":            models.DiscountAmount.StringFixed(2),
					"appliesOnEachItem": false,
				},
			},
			"items": map[string]any{"all": true},
		},
	}

	var data discountCreateData
	if err := c.graphqlRequest(ctx, query, map[string]any{"basicCodeDiscount": input}, &data); err != nil {
		return "", err
	}
	if err := userErrorsToError("discountCodeBasicCreate", data.DiscountCodeBasicCreate.UserErrors); err != nil {
		return "", err
	}
	node := data.DiscountCodeBasicCreate.CodeDiscountNode
	if node == nil || strings.TrimSpace(node.ID) == "" {
		return "", errors.New("shopify: discount create returned empty id")
	}
	return node.ID, nil
}

func (c *Client) DisableDiscount(ctx context.Context, discountID string) error {
	discountID = DiscountGID(discountID)
	if discountID == "" {
		return errors.New("shopify: discount id is required")
	}

	query := `
mutation discountCodeDeactivate($id: ID!) {
	discountCodeDeactivate(id: $id) {
		codeDiscountNode { id }
		userErrors { field message code }
	}
}`
	var data discountDeactivateData
	if err := c.graphqlRequest(ctx, query, map[string]any{"id": discountID}, &data); err != nil {
		return err
	}
	return userErrorsToError("discountCodeDeactivate", data.DiscountCodeDeactivate.UserErrors)
}

// GetDiscount reads a code discount. A missing node yields nil, nil.
func (c *Client) GetDiscount(ctx context.Context, discountID string) (*Discount, error) {
	discountID = DiscountGID(discountID)
	if discountID == "" {
		return nil, errors.New("shopify: discount id is required")
	}

	query := `
query codeDiscountNode($id: ID!) {
	codeDiscountNode(id: $id) {
		id
		codeDiscount {
			... on DiscountCodeBasic {
				title
				status
				codes(first: 5) { nodes { code } }
			}
		}
	}
}`
	var data discountNodeData
	if err := c.graphqlRequest(ctx, query, map[string]any{"id": discountID}, &data); err != nil {
		return nil, err
	}
	node := data.CodeDiscountNode
	if node == nil {
		return nil, nil
	}
	d := &Discount{ID: node.ID}
	if node.CodeDiscount != nil {
		d.Title = node.CodeDiscount.Title
		d.Status = node.CodeDiscount.Status
		for _, n := range node.CodeDiscount.Codes.Nodes {
			if code := strings.TrimSpace(n.Code); code != "" {
				d.Codes = append(d.Codes, code)
			}
		}
	}
	return d, nil
}
