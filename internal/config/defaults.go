package config

// DefaultConfig returns the default configuration: the canonical five-stage
// chain (research -> analysis -> writing -> seo -> quality) with one agent
// per role.
func DefaultConfig() *Config {
	return &Config{
		Workspace:        "./workspace",
		Database:         "./workspace/contentpipe.db",
		MaxIterations:    20,
		Concurrency:      1,
		QualityThreshold: 70,
		Stages: []StageConfig{
			{
				Type:     "research",
				Agent:    "researcher",
				Title:    "Research: %s",
				Priority: "high",
				Params:   map[string]any{"max_sources": 5},
			},
			{
				Type:      "analysis",
				Agent:     "analyst",
				Title:     "Analyze: %s",
				Priority:  "high",
				DependsOn: []string{"research"},
				Inputs: []InputConfig{
					{Key: "research_data", From: "research"},
				},
			},
			{
				Type:      "writing",
				Agent:     "writer",
				Title:     "Write: %s",
				Priority:  "medium",
				DependsOn: []string{"analysis"},
				Inputs: []InputConfig{
					{Key: "outline", From: "analysis", Field: "outline"},
				},
			},
			{
				Type:      "seo",
				Agent:     "seo",
				Title:     "SEO Optimize: %s",
				Priority:  "medium",
				DependsOn: []string{"writing"},
				Inputs: []InputConfig{
					{Key: "content", From: "writing", Field: "content"},
				},
			},
			{
				Type:      "quality",
				Agent:     "quality",
				Title:     "Quality Check: %s",
				Priority:  "high",
				DependsOn: []string{"seo"},
				Inputs: []InputConfig{
					{Key: "content", From: "seo", Field: "optimized_content"},
					{Key: "seo_data", From: "seo"},
				},
			},
		},
		Agents: map[string]AgentConfig{
			"researcher": {ID: "agent:researcher:main"},
			"analyst":    {ID: "agent:analyst:main"},
			"writer":     {ID: "agent:writer:main", Style: "professional"},
			"seo":        {ID: "agent:seo:main"},
			"quality":    {ID: "agent:quality:main"},
		},
	}
}
