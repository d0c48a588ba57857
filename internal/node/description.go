package node

// Resource and operation values accepted by the node.
const (
	ResourceSpace = "space"

	OpListSpace   = "list-space"
	OpCreateSpace = "create-new-space"
	OpRenameSpace = "rename-space"
	OpDeleteSpace = "delete-space"
	OpAskSpace    = "ask-space"
	OpAddRecord   = "add-record"
)

// Load-options methods.
const (
	MethodGetUserSpaces    = "getUserSpaces"
	MethodGetChatsForSpace = "getChatsForSpace"
)

// Description is the declarative schema the host renders as the node's
// parameter form.
type Description struct {
	Name         string                  `json:"name"`
	DisplayName  string                  `json:"displayName"`
	Description  string                  `json:"description"`
	Version      int                     `json:"version"`
	Group        []string                `json:"group"`
	Subtitle     string                  `json:"subtitle"`
	Defaults     map[string]string       `json:"defaults"`
	Inputs       []string                `json:"inputs"`
	Outputs      []string                `json:"outputs"`
	UsableAsTool bool                    `json:"usableAsTool"`
	Credentials  []CredentialRequirement `json:"credentials"`
	Properties   []Property              `json:"properties"`
}

type CredentialRequirement struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Property is one node parameter.
type Property struct {
	DisplayName      string           `json:"displayName"`
	Name             string           `json:"name"`
	Type             string           `json:"type"`
	Default          any              `json:"default"`
	Required         bool             `json:"required,omitempty"`
	NoDataExpression bool             `json:"noDataExpression,omitempty"`
	Description      string           `json:"description,omitempty"`
	Options          []PropertyOption `json:"options,omitempty"`
	TypeOptions      *TypeOptions     `json:"typeOptions,omitempty"`
	DisplayOptions   *DisplayOptions  `json:"displayOptions,omitempty"`
}

type PropertyOption struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action,omitempty"`
}

type TypeOptions struct {
	LoadOptionsMethod    string   `json:"loadOptionsMethod,omitempty"`
	LoadOptionsDependsOn []string `json:"loadOptionsDependsOn,omitempty"`
}

type DisplayOptions struct {
	Show map[string][]string `json:"show"`
}

func showFor(ops ...string) *DisplayOptions {
	return &DisplayOptions{Show: map[string][]string{
		"resource":  {ResourceSpace},
		"operation": ops,
	}}
}

// NodeDescription returns the Medullar node schema.
func NodeDescription() Description {
	return Description{
		Name:         "medullar",
		DisplayName:  "Medullar",
		Description:  "AI-powered discovery & insight platform that acts as your extended digital mind.",
		Version:      1,
		Group:        []string{"transform"},
		Subtitle:     `={{$parameter["operation"] + ": " + $parameter["resource"]}}`,
		Defaults:     map[string]string{"name": "Medullar"},
		Inputs:       []string{"main"},
		Outputs:      []string{"main"},
		UsableAsTool: true,
		Credentials:  []CredentialRequirement{{Name: "medullarApi", Required: true}},
		Properties:   properties(),
	}
}

func properties() []Property {
	spaceIDOps := []string{OpRenameSpace, OpDeleteSpace, OpAskSpace, OpAddRecord}
	return []Property{
		{
			DisplayName:      "Resource",
			Name:             "resource",
			Type:             "options",
			Default:          ResourceSpace,
			Required:         true,
			NoDataExpression: true,
			Description:      "Interact with a Medullar Space",
			Options:          []PropertyOption{{Name: "Space", Value: ResourceSpace}},
		},
		{
			DisplayName:      "Operation",
			Name:             "operation",
			Type:             "options",
			Default:          OpListSpace,
			NoDataExpression: true,
			DisplayOptions:   &DisplayOptions{Show: map[string][]string{"resource": {ResourceSpace}}},
			Options: []PropertyOption{
				{Name: "Add Space Record", Value: OpAddRecord, Description: "Adds a Record into a Space", Action: "Add a record to a space"},
				{Name: "Ask Space", Value: OpAskSpace, Description: "Ask anything to a Space", Action: "Ask a space"},
				{Name: "Create Space", Value: OpCreateSpace, Description: "Create a new Space", Action: "Create a space"},
				{Name: "Delete Space", Value: OpDeleteSpace, Description: "Delete a Space", Action: "Delete a space"},
				{Name: "List Spaces", Value: OpListSpace, Description: "List all user Spaces", Action: "List spaces"},
				{Name: "Rename Space", Value: OpRenameSpace, Description: "Rename a Space", Action: "Rename a space"},
			},
		},
		{
			DisplayName:    "Space Name",
			Name:           "spaceName",
			Type:           "string",
			Default:        "",
			Required:       true,
			DisplayOptions: showFor(OpCreateSpace, OpRenameSpace),
		},
		{
			DisplayName:    "Space ID",
			Name:           "spaceId",
			Type:           "options",
			Default:        "",
			Required:       true,
			Description:    "Space to operate on",
			TypeOptions:    &TypeOptions{LoadOptionsMethod: MethodGetUserSpaces},
			DisplayOptions: showFor(spaceIDOps...),
		},
		{
			DisplayName:    "Source Type",
			Name:           "sourceType",
			Type:           "options",
			Default:        "text",
			Required:       true,
			Description:    "Type of source to add to the Space",
			DisplayOptions: showFor(OpAddRecord),
			Options: []PropertyOption{
				{Name: "URL", Value: "url"},
				{Name: "Text", Value: "text"},
				{Name: "Image", Value: "image"},
				{Name: "File", Value: "file"},
			},
		},
		{
			DisplayName:    "Content",
			Name:           "content",
			Type:           "string",
			Default:        "",
			Description:    "Optional. Content of the record. Required if source type is Text.",
			DisplayOptions: showFor(OpAddRecord),
		},
		{
			DisplayName:    "URL",
			Name:           "url",
			Type:           "string",
			Default:        "",
			Description:    "Optional. URL of the record. Required if source type is URL.",
			DisplayOptions: showFor(OpAddRecord),
		},
		{
			DisplayName: "Chat ID",
			Name:        "chatId",
			Type:        "options",
			Default:     "",
			Description: "Optional. Chat to post the message to. A new chat is created when empty.",
			TypeOptions: &TypeOptions{
				LoadOptionsMethod:    MethodGetChatsForSpace,
				LoadOptionsDependsOn: []string{"spaceId"},
			},
			DisplayOptions: showFor(OpAskSpace),
		},
		{
			DisplayName:    "Chat Mode",
			Name:           "chatMode",
			Type:           "options",
			Default:        "single_agent",
			Required:       true,
			Description:    "Select chat mode",
			DisplayOptions: showFor(OpAskSpace),
			Options: []PropertyOption{
				{Name: "MedullaryAI Agent", Value: "single_agent"},
				{Name: "MedullaryAI Chat", Value: "chat"},
				{Name: "MedullaryAI Fact Check", Value: "fact_check_agent"},
				{Name: "MedullaryAI Researcher", Value: "research_agent"},
				{Name: "MedullaryAI Sales Researcher", Value: "sales_research_agent"},
			},
		},
		{
			DisplayName:    "Deep Analysis",
			Name:           "deepAnalysis",
			Type:           "boolean",
			Default:        false,
			Description:    "Whether to enable Deep Analysis to get more accurate results but slower response time",
			DisplayOptions: showFor(OpAskSpace),
		},
		{
			DisplayName:    "Message",
			Name:           "message",
			Type:           "string",
			Default:        "",
			Required:       true,
			Description:    "Message to send to the Space",
			DisplayOptions: showFor(OpAskSpace),
		},
	}
}

// defaults maps each property name to its default value.
func defaults() map[string]any {
	props := properties()
	out := make(map[string]any, len(props))
	for _, p := range props {
		out[p.Name] = p.Default
	}
	return out
}
