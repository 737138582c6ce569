package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// Property names of the Notion bills database.
const (
	PropName          = "Name"
	PropBillID        = "Bill ID"
	PropUser          = "User"
	PropType          = "Type"
	PropSupplier      = "Supplier"
	PropAmount        = "Amount"
	PropBillDate      = "Bill Date"
	PropDueDate       = "Due Date"
	PropUploaded      = "Uploaded"
	PropConsumption   = "Consumption"
	PropAccountNumber = "Account Number"
	PropConfidence    = "Confidence"
	PropNeedsReview   = "Needs Review"
	PropFile          = "File"
)

const dueDateLayout = "2006-01-02T15:04:05"

// BillToNotionProperties converts a bill record to Notion page properties.
// Missing optional fields are left out so that updates do not clear values
// edited by hand in Notion.
func BillToNotionProperties(bill *domain.BillRecord) notionapi.Properties {
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Title: richText(pageTitle(bill)),
		},
		PropBillID: notionapi.RichTextProperty{
			RichText: richText(bill.ID),
		},
		PropUser: notionapi.RichTextProperty{
			RichText: richText(bill.UserID),
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(bill.BillType)},
		},
		PropConfidence: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(bill.Confidence)},
		},
		PropNeedsReview: notionapi.CheckboxProperty{
			Checkbox: bill.NeedsManualReview(),
		},
		PropFile: notionapi.RichTextProperty{
			RichText: richText(bill.Filename),
		},
	}

	if bill.Supplier != nil {
		props[PropSupplier] = notionapi.RichTextProperty{RichText: richText(*bill.Supplier)}
	}
	if bill.Amount != nil {
		props[PropAmount] = notionapi.NumberProperty{Number: *bill.Amount}
	}
	if bill.BillDate != nil {
		props[PropBillDate] = dateProperty(bill.BillDate.In(time.UTC))
	}
	if bill.DueDate != nil {
		if due, err := time.Parse(dueDateLayout, *bill.DueDate); err == nil {
			props[PropDueDate] = dateProperty(due)
		}
	}
	if !bill.UploadTimestamp.IsZero() {
		props[PropUploaded] = dateProperty(bill.UploadTimestamp)
	}
	if len(bill.Consumption) > 0 {
		props[PropConsumption] = notionapi.RichTextProperty{RichText: richText(bill.Consumption.String())}
	}
	if bill.AccountNumber != nil {
		props[PropAccountNumber] = notionapi.RichTextProperty{RichText: richText(*bill.AccountNumber)}
	}

	return props
}

// pageTitle is "<Supplier> <type>" when the supplier is known, else the
// filename.
func pageTitle(bill *domain.BillRecord) string {
	if bill.Supplier != nil && *bill.Supplier != "" {
		return *bill.Supplier + " " + string(bill.BillType)
	}
	return bill.Filename
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &d},
	}
}

// extractBillID reads the Bill ID property of a page, or "".
func extractBillID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropBillID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}
