package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// загрузка описания графа
	LoadInfo           Code = 1000
	LoadParseError     Code = 1001
	LoadBadLabel       Code = 1002
	LoadBadHeaderPath  Code = 1003
	LoadUnknownField   Code = 1004
	LoadMissingLabel   Code = 1005
	LoadHeadersIgnored Code = 1006

	// структура графа
	GraphInfo            Code = 2000
	GraphMissingTarget   Code = 2001
	GraphDuplicateTarget Code = 2002
	GraphSelfDependency  Code = 2003
	GraphCycle           Code = 2004

	// модули
	ModInfo            Code = 3000
	ModNameRefused     Code = 3001
	ModWriteFailed     Code = 3002
	ModDuplicateModule Code = 3003
	ModArtifactClash   Code = 3004
)

var codeDescription = map[Code]string{
	UnknownCode:          "Unknown error",
	LoadInfo:             "Graph loading information",
	LoadParseError:       "Graph file cannot be parsed",
	LoadBadLabel:         "Malformed target label",
	LoadBadHeaderPath:    "Header path must be relative to the build root",
	LoadUnknownField:     "Unknown field in graph file",
	LoadMissingLabel:     "Target without label",
	LoadHeadersIgnored:   "Headers declared on a target that does not export them",
	GraphInfo:            "Graph information",
	GraphMissingTarget:   "Dependency on an undeclared target",
	GraphDuplicateTarget: "Target declared twice",
	GraphSelfDependency:  "Target depends on itself",
	GraphCycle:           "Dependency cycle",
	ModInfo:              "Module information",
	ModNameRefused:       "Module name cannot be derived",
	ModWriteFailed:       "Modulemap cannot be written",
	ModDuplicateModule:   "Module name defined by several targets",
	ModArtifactClash:     "Several targets write the same modulemap",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LOAD%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("GRAPH%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("MOD%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
