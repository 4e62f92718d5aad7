package authz

import (
	"fmt"

	"assocproxy/pkg/sparql"
)

func sessionTenantQuery(s Settings, session string) string {
	return fmt.Sprintf(`
PREFIX ext: <http://mu.semte.ch/vocabularies/ext/>
PREFIX dct: <http://purl.org/dc/terms/>

SELECT DISTINCT ?identifier WHERE {
  GRAPH %s {
    %s
      ext:sessionGroup ?adminUnit .
  }

  GRAPH %s {
    ?adminUnit
      dct:identifier ?identifier .
    FILTER(STRSTARTS(STR(?identifier), %s))
  }
}`,
		sparql.EscapeURI(s.SessionGraph),
		sparql.EscapeURI(session),
		sparql.EscapeURI(s.OrganisationGraph),
		sparql.EscapeString(s.TenantPrefix),
	)
}

// The agreement graph is assumed to hold only currently valid agreements; existence is all that is checked.
func agreementQuery(s Settings, tenantCode string) string {
	return fmt.Sprintf(`
PREFIX dct: <http://purl.org/dc/terms/>
PREFIX dpv: <https://w3id.org/dpv#>

SELECT DISTINCT ?subProcessingAgreement WHERE {
  GRAPH %s {
    ?adminUnit
      dct:identifier ?identifier .
    FILTER(STR(?identifier) = %s)
  }

  GRAPH %s {
    ?subProcessingAgreement
      dpv:hasDataProcessor ?adminUnit .
  }
}
LIMIT 1`,
		sparql.EscapeURI(s.OrganisationGraph),
		sparql.EscapeString(tenantCode),
		sparql.EscapeURI(s.AgreementGraph),
	)
}
