// Package catalog holds the static registry of tracked sub-Reddits and the
// categories that group them. The catalog is built once by New from the
// tables below and is read-only afterwards.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/model"
)

// Category slugs. Use these instead of repeating the literals.
const (
	CategoryContainerization   = "containerization"
	CategoryDatabases          = "databases"
	CategorySecurity           = "security-and-hacking"
	CategoryNetworking         = "networking"
	CategoryOperatingSystems   = "operating-systems"
	CategoryPlatformInfra      = "platform-and-infrastructure"
	CategoryProgrammingLang    = "programming-language"
	CategoryOpsAdministration  = "operations-and-administration"
	CategoryProgrammingCompSci = "programming-and-comp-sci"
)

var categoryTable = []model.Category{
	{
		Slug:        CategoryProgrammingLang,
		HumanName:   "Programming languages",
		Description: "Subreddits dedicated to specific programming languages.",
	},
	{
		Slug:        CategoryContainerization,
		HumanName:   "Containerization",
		Description: "Docker, rkt, Container orchestration, etc.",
	},
	{
		Slug:        CategoryDatabases,
		HumanName:   "Databases",
		Description: "It's where the data goes.",
	},
	{
		Slug:        CategoryNetworking,
		HumanName:   "Networking",
		Description: "Everything you never wanted to know about BGP.",
	},
	{
		Slug:        CategoryOperatingSystems,
		HumanName:   "Operating Systems",
		Description: "Operating systems, distributions, and other friends.",
	},
	{
		Slug:        CategoryOpsAdministration,
		HumanName:   "Operations and Administration",
		Description: "Provisioning, Configuration, Administration, and Deployment.",
	},
	{
		Slug:        CategoryPlatformInfra,
		HumanName:   "Platform and Infrastructure",
		Description: "IaaS, PaaS, Bare metal, oh my!",
	},
	{
		Slug:        CategoryProgrammingCompSci,
		HumanName:   "Programming and Comp Sci",
		Description: "Software Development, Comp Sci, self-improvement stuff.",
	},
	{
		Slug:        CategorySecurity,
		HumanName:   "Security and Hacking",
		Description: "Securing systems, intrusion detection, penetration testing, etc.",
	},
}

// membershipTable lists the sub-Reddits tracked under each category. A
// sub-Reddit may appear under more than one category.
var membershipTable = map[string][]string{
	CategoryProgrammingLang: {
		"python", "ruby", "golang", "java", "cplusplus", "csharp",
		"C_Programming", "cpp", "haskell", "php", "scala", "javascript",
		"perl", "swift", "d_language", "Rlanguage", "matlab", "dartlang",
		"ocaml", "lisp", "fsharp", "erlang", "lua", "visualbasic", "SQL",
		"rust", "asm",
	},
	CategoryContainerization: {
		"docker", "kubernetes", "mesos", "coreos", "openshift",
	},
	CategoryNetworking: {
		"netsec", "ccna", "darknetplan", "AskNetsec", "wireless", "networking",
		"HomeNetworking",
	},
	CategoryOperatingSystems: {
		"linux", "linux4noobs", "ubuntu", "bsd", "osx", "windows", "unix",
	},
	CategoryPlatformInfra: {
		"aws", "googlecloud", "AZURE", "openstack",
	},
	CategoryProgrammingCompSci: {
		"programming", "learnprogramming", "ProgrammerHumor", "dailyprogrammer",
		"coding", "shittyprogramming",
	},
	CategoryOpsAdministration: {
		"vagrant", "chef_opscode", "Puppet", "ansible", "saltstack",
		"iiiiiiitttttttttttt", "sysadmin",
	},
	CategoryDatabases: {
		"postgres", "mariadb", "mysql", "cassandra", "CouchDB", "mongodb",
		"rethinkdb",
	},
	CategorySecurity: {
		"security", "netsec", "ComputerSecurity", "compsec", "AskNetsec",
		"hacking", "pwned", "SecurityAnalysis", "securityCTF", "HowToHack",
		"blackhat",
	},
}

// Catalog is the immutable entity/category registry.
type Catalog struct {
	categories map[string]model.Category
	catOrder   []string
	entities   map[string]model.Entity
	slugOrder  []string
}

// New builds the catalog from the static tables. The result never changes,
// so callers may share one instance across goroutines.
func New() *Catalog {
	c := &Catalog{
		categories: make(map[string]model.Category, len(categoryTable)),
		entities:   make(map[string]model.Entity),
	}

	for _, cat := range categoryTable {
		c.categories[cat.Slug] = cat
		c.catOrder = append(c.catOrder, cat.Slug)
	}
	sort.Strings(c.catOrder)

	// Category order is fixed so entity category lists come out stable.
	for _, cat := range c.catOrder {
		for _, slug := range membershipTable[cat] {
			e, ok := c.entities[slug]
			if !ok {
				e = model.Entity{Slug: slug}
			}
			e.Categories = append(e.Categories, cat)
			c.entities[slug] = e
		}
	}

	for slug := range c.entities {
		c.slugOrder = append(c.slugOrder, slug)
	}
	sort.Slice(c.slugOrder, func(i, j int) bool {
		return strings.ToLower(c.slugOrder[i]) < strings.ToLower(c.slugOrder[j])
	})

	return c
}

// Categories returns every category, ordered by slug.
func (c *Catalog) Categories() []model.Category {
	out := make([]model.Category, 0, len(c.catOrder))
	for _, slug := range c.catOrder {
		out = append(out, c.categories[slug])
	}
	return out
}

// IsValidCategory reports whether the slug names a known category.
func (c *Catalog) IsValidCategory(slug string) bool {
	_, ok := c.categories[slug]
	return ok
}

// Category returns the category for the given slug.
func (c *Catalog) Category(slug string) (model.Category, error) {
	cat, ok := c.categories[slug]
	if !ok {
		return model.Category{}, fmt.Errorf("%w: %s", errs.ErrInvalidCategory, slug)
	}
	return cat, nil
}

// EntitiesInCategory returns the entities belonging to the category, in
// case-insensitive slug order.
func (c *Catalog) EntitiesInCategory(slug string) ([]model.Entity, error) {
	if !c.IsValidCategory(slug) {
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidCategory, slug)
	}
	var out []model.Entity
	for _, s := range c.slugOrder {
		e := c.entities[s]
		for _, cat := range e.Categories {
			if cat == slug {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

// HasEntity reports whether the slug names a tracked sub-Reddit.
func (c *Catalog) HasEntity(slug string) bool {
	_, ok := c.entities[slug]
	return ok
}

// Slugs returns every tracked sub-Reddit slug in case-insensitive order.
// The dispatcher fans scan work out from this list.
func (c *Catalog) Slugs() []string {
	out := make([]string, len(c.slugOrder))
	copy(out, c.slugOrder)
	return out
}
