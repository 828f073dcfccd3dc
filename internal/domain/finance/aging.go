package finance

// AgingBucket is a days-overdue range used for arrears reporting
type AgingBucket string

const (
	AgingCurrent    AgingBucket = "current"
	AgingDays30     AgingBucket = "days_30"
	AgingDays60     AgingBucket = "days_60"
	AgingDays90Plus AgingBucket = "days_90_plus"
)

// Bucket upper bounds. The current bucket ends where friendly reminders end.
const (
	AgingCurrentMaxDays = FriendlyMaxDays
	AgingDays30MaxDays  = 30
	AgingDays60MaxDays  = 60
)

// AgingBucketForDays returns the bucket an invoice overdue by days falls into
func AgingBucketForDays(days int) AgingBucket {
	switch {
	case days <= AgingCurrentMaxDays:
		return AgingCurrent
	case days <= AgingDays30MaxDays:
		return AgingDays30
	case days <= AgingDays60MaxDays:
		return AgingDays60
	default:
		return AgingDays90Plus
	}
}

// AgingSummary holds outstanding cents per aging bucket
type AgingSummary struct {
	Current    int64 `json:"current"`
	Days30     int64 `json:"days_30"`
	Days60     int64 `json:"days_60"`
	Days90Plus int64 `json:"days_90_plus"`
}

// Add accumulates an outstanding amount into the bucket for days
func (a *AgingSummary) Add(days int, outstandingCents int64) {
	switch AgingBucketForDays(days) {
	case AgingCurrent:
		a.Current += outstandingCents
	case AgingDays30:
		a.Days30 += outstandingCents
	case AgingDays60:
		a.Days60 += outstandingCents
	default:
		a.Days90Plus += outstandingCents
	}
}

// Total returns the sum across all buckets
func (a AgingSummary) Total() int64 {
	return a.Current + a.Days30 + a.Days60 + a.Days90Plus
}
