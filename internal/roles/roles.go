package roles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Role is a single entry of the role catalogue: a stable identifier, a title
// used in candidate-facing output and a free-form requirements block embedded
// into evaluation prompts.
type Role struct {
	ID           string `mapstructure:"-"`
	Title        string `mapstructure:"title"`
	Requirements string `mapstructure:"requirements"`
}

// Catalogue holds the set of openable roles. The catalogue is configuration,
// not pipeline state: it is built once at startup and never mutated afterwards.
type Catalogue struct {
	roles map[string]Role
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	c := &Catalogue{roles: make(map[string]Role, len(defaultRoles))}
	for id, role := range defaultRoles {
		role.ID = id
		c.roles[id] = role
	}
	return c
}

// Merge decodes role overrides (typically the raw `roles` section of the config
// file) on top of the catalogue. An override with an empty requirements block is
// rejected: a role without requirements cannot be evaluated against.
func (c *Catalogue) Merge(raw map[string]any) error {
	for id, entry := range raw {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			return fmt.Errorf("role id must not be empty")
		}

		role := c.roles[id]
		role.ID = id

		if err := mapstructure.Decode(entry, &role); err != nil {
			return fmt.Errorf("decoding role %q: %w", id, err)
		}

		if strings.TrimSpace(role.Requirements) == "" {
			return fmt.Errorf("role %q has no requirements", id)
		}

		if strings.TrimSpace(role.Title) == "" {
			role.Title = titleFromID(id)
		}

		c.roles[id] = role
	}

	return nil
}

// Get returns the role for the given id.
func (c *Catalogue) Get(id string) (Role, error) {
	role, ok := c.roles[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Role{}, fmt.Errorf("unknown role %q (known roles: %s)", id, strings.Join(c.IDs(), ", "))
	}
	return role, nil
}

// IDs returns the sorted role identifiers.
func (c *Catalogue) IDs() []string {
	ids := make([]string, 0, len(c.roles))
	for id := range c.roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the roles sorted by id.
func (c *Catalogue) All() []Role {
	all := make([]Role, 0, len(c.roles))
	for _, id := range c.IDs() {
		all = append(all, c.roles[id])
	}
	return all
}

func titleFromID(id string) string {
	parts := strings.Split(id, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

var defaultRoles = map[string]Role{
	"ai_ml_engineer": {
		Title: "AI/ML Engineer",
		Requirements: `Required Skills:
- Proficiency in Python and frameworks such as PyTorch or TensorFlow
- Strong understanding of machine learning algorithms and their applications
- Deep learning concepts including CNNs, RNNs, and Transformers
- Experience with MLOps, model deployment, and monitoring pipelines
- Expertise in Retrieval-Augmented Generation (RAG), Large Language Models (LLMs), and fine-tuning techniques
- Familiarity with data preprocessing, feature engineering, and model evaluation
- Strong problem-solving and analytical skills`,
	},
	"frontend_engineer": {
		Title: "Frontend Engineer",
		Requirements: `Required Skills:
- Expertise in modern frontend frameworks such as React, Vue.js, or Angular
- Strong proficiency in HTML5, CSS3, and JavaScript (ES6+)
- Experience with responsive design and cross-browser compatibility
- State management solutions (e.g., Redux, Vuex, Context API)
- Knowledge of frontend testing frameworks (Jest, Cypress, etc.)
- Experience with UI/UX principles and design systems
- Familiarity with performance optimization and security best practices`,
	},
	"backend_engineer": {
		Title: "Backend Engineer",
		Requirements: `Required Skills:
- Proficiency in backend programming languages such as Python, Java, or Node.js
- Experience in building and maintaining RESTful APIs and microservices architecture
- Strong knowledge of relational and NoSQL databases (PostgreSQL, MongoDB, etc.)
- Cloud computing services (AWS, Azure, GCP) and serverless architecture
- Containerization and orchestration using Docker and Kubernetes
- Understanding of authentication and authorization mechanisms (OAuth, JWT)
- Experience with CI/CD pipelines and DevOps practices`,
	},
}
