package agents

// AgentConfig is the stored shape, one JSON value per agent under
// agent:config:<id>. The API key is the task API credential returned
// when the agent user was provisioned; the worker authenticates with
// it when reporting outcomes.
type AgentConfig struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	APIKey       string `json:"api_key"`
	TaskUserID   string `json:"task_user_id"`
}

type Agent struct {
	AgentID      string `json:"agent_id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	APIKey       string `json:"api_key"`
}

type CreateAgentRequest struct {
	Name         string `json:"name" binding:"required"`
	SystemPrompt string `json:"system_prompt"`
	AgentID      string `json:"agent_id"`
}

type UpdateAgentRequest struct {
	Name         *string `json:"name"`
	SystemPrompt *string `json:"system_prompt"`
}

func toAgent(agentID string, cfg AgentConfig) Agent {
	return Agent{
		AgentID:      agentID,
		Name:         cfg.Name,
		SystemPrompt: cfg.SystemPrompt,
		APIKey:       cfg.APIKey,
	}
}
