package exchange

import "encoding/xml"

const (
	nsSoap     = "http://schemas.xmlsoap.org/soap/envelope/"
	nsTypes    = "http://schemas.microsoft.com/exchange/services/2006/types"
	nsMessages = "http://schemas.microsoft.com/exchange/services/2006/messages"

	sendToAllAndSaveCopy = "SendToAllAndSaveCopy"
	sendToNone           = "SendToNone"
	alwaysOverwrite      = "AlwaysOverwrite"
	moveToDeletedItems   = "MoveToDeletedItems"
	responseClassSuccess = "Success"
	responseClassWarning = "Warning"
)

// Requests are marshalled with literal prefixes; responses are matched by local name.

type envelope struct {
	XMLName   xml.Name `xml:"soap:Envelope"`
	XmlnsSoap string   `xml:"xmlns:soap,attr"`
	XmlnsT    string   `xml:"xmlns:t,attr"`
	XmlnsM    string   `xml:"xmlns:m,attr"`
	Header    header   `xml:"soap:Header"`
	Body      body     `xml:"soap:Body"`
}

type header struct {
	Version       serverVersion `xml:"t:RequestServerVersion"`
	Impersonation impersonation `xml:"t:ExchangeImpersonation"`
}

type serverVersion struct {
	Version string `xml:"Version,attr"`
}

type impersonation struct {
	ConnectingSID connectingSID `xml:"t:ConnectingSID"`
}

type connectingSID struct {
	PrincipalName string `xml:"t:PrincipalName,omitempty"`
	SmtpAddress   string `xml:"t:SmtpAddress,omitempty"`
}

type body struct {
	Content any
}

type itemID struct {
	ID        string `xml:"Id,attr"`
	ChangeKey string `xml:"ChangeKey,attr,omitempty"`
}

type distinguishedFolder struct {
	ID string `xml:"Id,attr"`
}

type savedItemFolder struct {
	Folder distinguishedFolder `xml:"t:DistinguishedFolderId"`
}

type bodyContent struct {
	Type    string `xml:"BodyType,attr"`
	Content string `xml:",chardata"`
}

type mailbox struct {
	Name         string `xml:"t:Name,omitempty"`
	EmailAddress string `xml:"t:EmailAddress"`
}

type attendee struct {
	Mailbox mailbox `xml:"t:Mailbox"`
}

type attendees struct {
	Attendee []attendee `xml:"t:Attendee"`
}

type dailyRecurrence struct {
	Interval int `xml:"t:Interval"`
}

type endDateRecurrence struct {
	StartDate string `xml:"t:StartDate"`
	EndDate   string `xml:"t:EndDate"`
}

type recurrence struct {
	Daily dailyRecurrence   `xml:"t:DailyRecurrence"`
	Range endDateRecurrence `xml:"t:EndDateRecurrence"`
}

// calendarItem fields follow the schema sequence of t:CalendarItem.
type calendarItem struct {
	Subject           string       `xml:"t:Subject,omitempty"`
	Body              *bodyContent `xml:"t:Body,omitempty"`
	ReminderDueBy     string       `xml:"t:ReminderDueBy,omitempty"`
	Start             string       `xml:"t:Start,omitempty"`
	End               string       `xml:"t:End,omitempty"`
	Location          string       `xml:"t:Location,omitempty"`
	RequiredAttendees *attendees   `xml:"t:RequiredAttendees,omitempty"`
	OptionalAttendees *attendees   `xml:"t:OptionalAttendees,omitempty"`
	Recurrence        *recurrence  `xml:"t:Recurrence,omitempty"`
}

type createItem struct {
	XMLName                xml.Name        `xml:"m:CreateItem"`
	SendMeetingInvitations string          `xml:"SendMeetingInvitations,attr"`
	SavedItemFolderID      savedItemFolder `xml:"m:SavedItemFolderId"`
	Items                  struct {
		CalendarItem calendarItem `xml:"t:CalendarItem"`
	} `xml:"m:Items"`
}

type fieldURI struct {
	URI string `xml:"FieldURI,attr"`
}

type itemShape struct {
	BaseShape  string     `xml:"t:BaseShape"`
	Additional []fieldURI `xml:"t:AdditionalProperties>t:FieldURI,omitempty"`
}

type getItem struct {
	XMLName xml.Name  `xml:"m:GetItem"`
	Shape   itemShape `xml:"m:ItemShape"`
	ItemIDs []itemID  `xml:"m:ItemIds>t:ItemId"`
}

type setItemField struct {
	XMLName      xml.Name     `xml:"t:SetItemField"`
	Field        fieldURI     `xml:"t:FieldURI"`
	CalendarItem calendarItem `xml:"t:CalendarItem"`
}

type deleteItemField struct {
	XMLName xml.Name `xml:"t:DeleteItemField"`
	Field   fieldURI `xml:"t:FieldURI"`
}

// updates holds setItemField and deleteItemField values; each names itself.
type updates struct {
	Changes []any
}

type itemChange struct {
	ItemID  itemID  `xml:"t:ItemId"`
	Updates updates `xml:"t:Updates"`
}

type updateItem struct {
	XMLName            xml.Name   `xml:"m:UpdateItem"`
	ConflictResolution string     `xml:"ConflictResolution,attr"`
	SendInvitations    string     `xml:"SendMeetingInvitationsOrCancellations,attr"`
	Changes            itemChange `xml:"m:ItemChanges>t:ItemChange"`
}

type deleteItem struct {
	XMLName           xml.Name `xml:"m:DeleteItem"`
	DeleteType        string   `xml:"DeleteType,attr"`
	SendCancellations string   `xml:"SendMeetingCancellations,attr"`
	ItemIDs           []itemID `xml:"m:ItemIds>t:ItemId"`
}

// =============================================================================
// Responses
// =============================================================================

type responseEnvelope struct {
	Body struct {
		Fault    *soapFault `xml:"Fault"`
		Response struct {
			Messages struct {
				Items []responseMessage `xml:",any"`
			} `xml:"ResponseMessages"`
		} `xml:",any"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseMessage struct {
	ResponseClass string `xml:"ResponseClass,attr"`
	MessageText   string `xml:"MessageText"`
	ResponseCode  string `xml:"ResponseCode"`
	Items         struct {
		CalendarItems []calendarItemResult `xml:"CalendarItem"`
	} `xml:"Items"`
}

type calendarItemResult struct {
	ItemID    itemID `xml:"ItemId"`
	IsMeeting bool   `xml:"IsMeeting"`
}
