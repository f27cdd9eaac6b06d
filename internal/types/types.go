package types

// Turn streaming

type StreamTurnRequest struct {
	ProjectId string `path:"projectId" json:"-"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	UserText  string `json:"userText"`
}

// Projects

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type Project struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type CreateProjectResponse struct {
	Project Project `json:"project"`
}

type ListProjectsResponse struct {
	Projects []Project `json:"projects"`
}

// Turns

type ListTurnsRequest struct {
	ProjectId string `path:"id" json:"-"`
	Page      int    `form:"page" json:"-"`
	PageSize  int    `form:"pageSize" json:"-"`
}

type Turn struct {
	Id            string `json:"id"`
	ProjectId     string `json:"projectId"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	UserText      string `json:"userText"`
	AssistantText string `json:"assistantText"`
	LatencyMs     int64  `json:"latencyMs"`
	RequestId     string `json:"requestId,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

type ListTurnsResponse struct {
	Turns []Turn `json:"turns"`
	Total int64  `json:"total"`
}

type GetInjectedRequest struct {
	Id string `path:"id" json:"-"`
}

type GetInjectedResponse struct {
	TurnId   string `json:"turnId"`
	Injected string `json:"injected"`
}

// Graph nodes

type Node struct {
	Id        string  `json:"id"`
	ProjectId string  `json:"projectId"`
	TurnId    string  `json:"turnId"`
	Title     *string `json:"title"`
	Summary   string  `json:"summary"`
	Pinned    bool    `json:"pinned"`
	Edited    bool    `json:"edited"`
	DeletedAt string  `json:"deletedAt,omitempty"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type GetNodeRequest struct {
	Id string `path:"id" json:"-"`
}

type UpdateNodeRequest struct {
	Id      string  `path:"id" json:"-"`
	Title   *string `json:"title"`
	Summary *string `json:"summary"`
	Pinned  *bool   `json:"pinned"`
}

type DeleteNodeRequest struct {
	Id string `path:"id" json:"-"`
}

type RestoreNodeRequest struct {
	Id string `path:"id" json:"-"`
}

type NodeResponse struct {
	Node Node `json:"node"`
}

// Graph view

type GraphViewRequest struct {
	ProjectId      string `path:"id" json:"-"`
	IncludeDeleted bool   `form:"includeDeleted" json:"-"`
}

type Edge struct {
	Id        string  `json:"id"`
	SrcNodeId string  `json:"srcNodeId"`
	DstNodeId string  `json:"dstNodeId"`
	Kind      string  `json:"kind"`
	Weight    float64 `json:"weight"`
	CreatedAt string  `json:"createdAt"`
}

type GraphViewResponse struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
