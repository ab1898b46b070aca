package checkmk

// Host state 0 means UP; anything else is a problem state.
const stateOK = 0

// Host is one monitored host as returned by the Checkmk REST API
type Host struct {
	ID         string         `json:"id"`
	Extensions HostExtensions `json:"extensions"`
}

// HostExtensions carries the livestatus columns requested for hosts
type HostExtensions struct {
	Name                string `json:"name"`
	State               int    `json:"state"`
	LastCheck           int64  `json:"last_check"`
	Acknowledged        int    `json:"acknowledged"`
	AcknowledgementType int    `json:"acknowledgement_type"`
}

// Service is one monitored service as returned by the Checkmk REST API
type Service struct {
	ID         string            `json:"id"`
	Extensions ServiceExtensions `json:"extensions"`
}

// ServiceExtensions carries the livestatus columns requested for services
type ServiceExtensions struct {
	HostName     string `json:"host_name"`
	Description  string `json:"description"`
	State        int    `json:"state"`
	LastCheck    int64  `json:"last_check"`
	Acknowledged int    `json:"acknowledged"`
	CheckCommand string `json:"check_command"`
	PluginOutput string `json:"plugin_output"`
}

type collectionResponse[T any] struct {
	Value []T `json:"value"`
}

type columnsRequest struct {
	Columns []string `json:"columns"`
}

type hostAcknowledgement struct {
	AcknowledgeType string `json:"acknowledge_type"`
	Comment         string `json:"comment"`
	HostName        string `json:"host_name"`
	Sticky          bool   `json:"sticky"`
	Persistent      bool   `json:"persistent"`
	Notify          bool   `json:"notify"`
}

type serviceAcknowledgement struct {
	AcknowledgeType    string `json:"acknowledge_type"`
	Comment            string `json:"comment"`
	HostName           string `json:"host_name"`
	ServiceDescription string `json:"service_description"`
	Sticky             bool   `json:"sticky"`
	Persistent         bool   `json:"persistent"`
	Notify             bool   `json:"notify"`
}

type hostComment struct {
	CommentType string `json:"comment_type"`
	Comment     string `json:"comment"`
	HostName    string `json:"host_name"`
	Persistent  bool   `json:"persistent"`
}

type serviceComment struct {
	CommentType        string `json:"comment_type"`
	Comment            string `json:"comment"`
	HostName           string `json:"host_name"`
	ServiceDescription string `json:"service_description"`
	Persistent         bool   `json:"persistent"`
}
