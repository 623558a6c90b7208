package cachekeys

// Keys is an ordered, duplicate-free set of cache keys.
type Keys struct {
	seen map[string]struct{}
	list []string
}

// Add appends keys not already present.
func (k *Keys) Add(keys ...string) *Keys {
	if k.seen == nil {
		k.seen = make(map[string]struct{})
	}
	for _, key := range keys {
		if _, ok := k.seen[key]; ok {
			continue
		}
		k.seen[key] = struct{}{}
		k.list = append(k.list, key)
	}
	return k
}

// List returns the keys in insertion order.
func (k *Keys) List() []string {
	return k.list
}

// clientViews are every client-scoped view that lists vendors.
func clientViews(k *Keys, clientID string) {
	if clientID == "" {
		return
	}
	k.Add(
		ClientDashboardStats(clientID),
		ClientVendors(clientID),
		ClientVendorList(clientID),
		ClientSummaries(clientID),
		ClientDetails(clientID),
	)
}

func summaryViews(k *Keys, vendorID string, viewerIDs []string) {
	k.Add(VendorSummaryForVendor(vendorID), VendorSummaryForCompany(vendorID))
	for _, viewer := range viewerIDs {
		k.Add(VendorSummary(vendorID, viewer))
	}
}

// AnswerChanged lists the views staled by submitting, updating or deleting
// one of vendorID's answers. clientID is the vendor's client, if any. The
// user tables list questionnaire status, which an answer write may flip.
func AnswerChanged(vendorID, clientID string) []string {
	k := &Keys{}
	k.Add(
		VendorQuestionnaire(vendorID),
		QuestionnaireStatus(vendorID),
		VendorDashboardStats(vendorID),
		VendorSummaryForVendor(vendorID),
		VendorSummaryForCompany(vendorID),
		AllVendors(),
		AllUsers(),
		PendingUsers(),
	)
	if clientID != "" {
		k.Add(
			ClientDashboardStats(clientID),
			ClientVendors(clientID),
			ClientDetails(clientID),
		)
	}
	return k.List()
}

// SummaryUploaded lists the views staled by a new summary for vendorID.
// viewerIDs are the users whose viewer-scoped summary key may be cached: the
// vendor's client and every company user.
func SummaryUploaded(vendorID, clientID string, viewerIDs []string) []string {
	k := &Keys{}
	summaryViews(k, vendorID, viewerIDs)
	k.Add(VendorDashboardStats(vendorID), CompanyDashboardStats())
	if clientID != "" {
		k.Add(
			ClientSummaries(clientID),
			ClientDashboardStats(clientID),
			ClientVendorList(clientID),
			ClientDetails(clientID),
		)
	}
	return k.List()
}

// UserSignedUp lists the views staled by a new account. clientID is set for
// a vendor that named its client at signup.
func UserSignedUp(clientID string) []string {
	k := &Keys{}
	k.Add(AllUsers(), PendingUsers(), CompanyDashboardStats())
	clientViews(k, clientID)
	return k.List()
}

// UserRef identifies the user a company write acted on.
type UserRef struct {
	ID       string
	IsVendor bool
	IsClient bool
	// ClientID is the vendor's client.
	ClientID string
	// VendorIDs are the client's vendors.
	VendorIDs []string
}

// VerificationChanged lists the views staled by approving or rejecting u.
func VerificationChanged(u UserRef, viewerIDs []string) []string {
	k := &Keys{}
	k.Add(AllUsers(), PendingUsers(), CompanyDashboardStats(), AllVendors())
	if u.IsClient {
		k.Add(AllClients())
		clientViews(k, u.ID)
	}
	if u.IsVendor {
		k.Add(VendorDashboardStats(u.ID))
		summaryViews(k, u.ID, viewerIDs)
		clientViews(k, u.ClientID)
	}
	return k.List()
}

// UserDeleted lists the views staled by deleting u.
func UserDeleted(u UserRef, viewerIDs []string) []string {
	k := &Keys{}
	k.Add(VerificationChanged(u, viewerIDs)...)
	if u.IsVendor {
		k.Add(VendorQuestionnaire(u.ID), QuestionnaireStatus(u.ID))
	}
	// The client's vendors lose their client.
	for _, vendorID := range u.VendorIDs {
		k.Add(VendorDashboardStats(vendorID), VendorSummaryForCompany(vendorID))
	}
	return k.List()
}

// VendorClientChanged lists the views staled when vendorID moves from
// oldClientID to newClientID. Pending vendors may move too, so the pending
// list is included.
func VendorClientChanged(vendorID, oldClientID, newClientID string) []string {
	k := &Keys{}
	k.Add(AllUsers(), PendingUsers(), AllVendors(), VendorDashboardStats(vendorID), VendorSummaryForCompany(vendorID))
	for _, clientID := range []string{oldClientID, newClientID} {
		if clientID == "" {
			continue
		}
		clientViews(k, clientID)
		k.Add(VendorSummary(vendorID, clientID))
	}
	return k.List()
}
