// Package saml renders the SAML 2.0 federation metadata document that
// Entra ID publishes per tenant.
package saml

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// XML namespaces and bindings used in the metadata document.
const (
	NamespaceMetadata = "urn:oasis:names:tc:SAML:2.0:metadata"
	NamespaceDSig     = "http://www.w3.org/2000/09/xmldsig#"
	ProtocolSAML2     = "urn:oasis:names:tc:SAML:2.0:protocol"
	BindingRedirect   = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	BindingPOST       = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
)

// ContentType is the media type of the rendered document.
const ContentType = "application/xml"

// EntityID returns the Entra-style entity identifier for tenant.
func EntityID(tenant string) string {
	return "https://sts.windows.net/" + tenant + "/"
}

// Metadata describes one tenant's identity provider descriptor.
type Metadata struct {
	Tenant    string
	BaseURL   string
	PublicKey *rsa.PublicKey
}

// Document builds the EntityDescriptor tree. The signing key is published
// as the base64 DER of the public key inside X509Certificate.
func (m Metadata) Document() (*etree.Document, error) {
	if m.PublicKey == nil {
		return nil, fmt.Errorf("saml metadata: public key is required")
	}
	der, err := x509.MarshalPKIXPublicKey(m.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("saml metadata: encode public key: %w", err)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	entity := doc.CreateElement("EntityDescriptor")
	entity.CreateAttr("xmlns", NamespaceMetadata)
	entity.CreateAttr("entityID", EntityID(m.Tenant))

	idp := entity.CreateElement("IDPSSODescriptor")
	idp.CreateAttr("protocolSupportEnumeration", ProtocolSAML2)

	kd := idp.CreateElement("KeyDescriptor")
	kd.CreateAttr("use", "signing")
	keyInfo := kd.CreateElement("KeyInfo")
	keyInfo.CreateAttr("xmlns", NamespaceDSig)
	keyInfo.CreateElement("X509Data").
		CreateElement("X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(der))

	location := strings.TrimRight(m.BaseURL, "/") + "/" + m.Tenant + "/saml2"
	endpoint(idp, "SingleLogoutService", BindingRedirect, location)
	endpoint(idp, "SingleSignOnService", BindingRedirect, location)
	endpoint(idp, "SingleSignOnService", BindingPOST, location)

	doc.Indent(2)
	return doc, nil
}

// Render serializes the document.
func (m Metadata) Render() ([]byte, error) {
	doc, err := m.Document()
	if err != nil {
		return nil, err
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("saml metadata: serialize: %w", err)
	}
	return out, nil
}

func endpoint(parent *etree.Element, tag, binding, location string) {
	el := parent.CreateElement(tag)
	el.CreateAttr("Binding", binding)
	el.CreateAttr("Location", location)
}
