package servicedesk

// Request is one ServiceDesk Plus request as returned by the v3 API
type Request struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Status  Status `json:"status"`
}

// Status is the named status of a request ("Open", "Closed", ...)
type Status struct {
	Name string `json:"name"`
}

type user struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name"`
}

type namedField struct {
	Name string `json:"name"`
}

type templateRef struct {
	ID int `json:"id"`
}

type resolution struct {
	Content string `json:"content"`
}

type creationRequest struct {
	Subject       string            `json:"subject"`
	Description   string            `json:"description"`
	Requester     user              `json:"requester"`
	Resolution    *resolution       `json:"resolution,omitempty"`
	ImpactDetails string            `json:"impact_details,omitempty"`
	Status        namedField        `json:"status"`
	RequestType   namedField        `json:"request_type"`
	Template      templateRef       `json:"template"`
	Priority      namedField        `json:"priority"`
	UDFFields     map[string]string `json:"udf_fields,omitempty"`
}

type creationEnvelope struct {
	Request creationRequest `json:"request"`
}

type closureInfo struct {
	RequesterAckComments   string     `json:"requester_ack_comments"`
	ClosureComments        string     `json:"closure_comments"`
	ClosureCode            namedField `json:"closure_code"`
	RequesterAckResolution bool       `json:"requester_ack_resolution"`
}

type closureEnvelope struct {
	Request struct {
		ClosureInfo closureInfo `json:"closure_info"`
	} `json:"request"`
}

type requestEnvelope struct {
	Request Request `json:"request"`
}

type listInfo struct {
	RowCount      int    `json:"row_count"`
	StartIndex    int    `json:"start_index"`
	SortField     string `json:"sort_field"`
	SortOrder     string `json:"sort_order"`
	GetTotalCount bool   `json:"get_total_count"`
	HasMoreRows   bool   `json:"has_more_rows,omitempty"`
}

type listRequest struct {
	ListInfo listInfo `json:"list_info"`
}

type listEnvelope struct {
	Requests []Request `json:"requests"`
	ListInfo listInfo  `json:"list_info"`
}
