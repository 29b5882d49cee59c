package kinematics

import (
	"encoding/xml"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rkd/spatialmath"
)

// URDFConfig represents the supported fields of a Universal Robot Description Format (URDF) file.
type URDFConfig struct {
	XMLName xml.Name    `xml:"robot"`
	Name    string      `xml:"name,attr"`
	Links   []URDFLink  `xml:"link"`
	Joints  []URDFJoint `xml:"joint"`
}

// URDFLink is a struct which details the XML used in a URDF link element.
type URDFLink struct {
	XMLName  xml.Name      `xml:"link"`
	Name     string        `xml:"name,attr"`
	Inertial *URDFInertial `xml:"inertial,omitempty"`
}

// URDFInertial holds the mass properties of a link. The inertia is about the origin, which is the center of mass.
type URDFInertial struct {
	Origin *URDFPose `xml:"origin,omitempty"`
	Mass   struct {
		Value float64 `xml:"value,attr"`
	} `xml:"mass"`
	Inertia struct {
		IXX float64 `xml:"ixx,attr"`
		IXY float64 `xml:"ixy,attr"`
		IXZ float64 `xml:"ixz,attr"`
		IYY float64 `xml:"iyy,attr"`
		IYZ float64 `xml:"iyz,attr"`
		IZZ float64 `xml:"izz,attr"`
	} `xml:"inertia"`
}

// URDFPose is an origin element, "x y z" in meters and "r p y" in radians.
type URDFPose struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

// URDFAxis is the axis element of a joint.
type URDFAxis struct {
	XYZ string `xml:"xyz,attr"`
}

// URDFLimit holds revolute joint limits in radians.
type URDFLimit struct {
	Lower float64 `xml:"lower,attr"`
	Upper float64 `xml:"upper,attr"`
}

// URDFFrame names the link on one side of a joint.
type URDFFrame struct {
	Link string `xml:"link,attr"`
}

// URDFJoint is a struct which details the XML used in a URDF joint element.
type URDFJoint struct {
	XMLName xml.Name   `xml:"joint"`
	Name    string     `xml:"name,attr"`
	Type    string     `xml:"type,attr"`
	Parent  URDFFrame  `xml:"parent"`
	Child   URDFFrame  `xml:"child"`
	Origin  *URDFPose  `xml:"origin,omitempty"`
	Axis    *URDFAxis  `xml:"axis,omitempty"`
	Limit   *URDFLimit `xml:"limit,omitempty"`
}

// parse returns the translation of the pose, rejecting any rotation since links carry no fixed rotation.
func (p *URDFPose) parse(what string) (r3.Vector, error) {
	if p == nil {
		return r3.Vector{}, nil
	}
	rpy, err := spatialmath.SpaceDelimitedStringToVector(p.RPY)
	if err != nil {
		return r3.Vector{}, errors.Wrapf(err, "%s rpy", what)
	}
	if rpy != (r3.Vector{}) {
		return r3.Vector{}, errors.Errorf("%s has rotation rpy=%q, only translations are supported", what, p.RPY)
	}
	xyz, err := spatialmath.SpaceDelimitedStringToVector(p.XYZ)
	if err != nil {
		return r3.Vector{}, errors.Wrapf(err, "%s xyz", what)
	}
	return xyz, nil
}

// ConvertURDFToConfig will transfer the given URDF XML data into an equivalent ModelConfig. Only revolute and
// continuous joints are supported.
func ConvertURDFToConfig(xmlData []byte) (*ModelConfig, error) {
	// empty data probably means that the read URDF has no actionable information
	if len(xmlData) == 0 {
		return nil, ErrNoModelInformation
	}
	urdf := &URDFConfig{}
	if err := xml.Unmarshal(xmlData, urdf); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal URDF")
	}

	jointByChild := make(map[string]*URDFJoint, len(urdf.Joints))
	for i := range urdf.Joints {
		j := &urdf.Joints[i]
		switch j.Type {
		case "revolute", "continuous":
		default:
			return nil, errors.Errorf("joint %q has unsupported type %q, only revolute and continuous are supported", j.Name, j.Type)
		}
		if _, ok := jointByChild[j.Child.Link]; ok {
			return nil, errors.Errorf("link %q is the child of more than one joint", j.Child.Link)
		}
		jointByChild[j.Child.Link] = j
	}

	cfg := &ModelConfig{Name: urdf.Name, Links: make([]LinkConfig, 0, len(urdf.Links))}
	for _, ul := range urdf.Links {
		lc := LinkConfig{ID: ul.Name, Axis: r3.Vector{Z: 1}}
		if ul.Inertial != nil {
			com, err := ul.Inertial.Origin.parse("inertial origin of link " + ul.Name)
			if err != nil {
				return nil, err
			}
			in := ul.Inertial.Inertia
			lc.Mass = ul.Inertial.Mass.Value
			lc.COM = com
			lc.Inertia = spatialmath.NewInertia(in.IXX, in.IYY, in.IZZ, in.IXY, in.IXZ, in.IYZ)
		}
		if j, ok := jointByChild[ul.Name]; ok {
			offset, err := j.Origin.parse("origin of joint " + j.Name)
			if err != nil {
				return nil, err
			}
			lc.Parent = j.Parent.Link
			lc.Offset = offset
			// URDF default axis
			lc.Axis = r3.Vector{X: 1}
			if j.Axis != nil {
				if lc.Axis, err = spatialmath.SpaceDelimitedStringToVector(j.Axis.XYZ); err != nil {
					return nil, errors.Wrapf(err, "axis of joint %s", j.Name)
				}
			}
			if j.Type == "revolute" && j.Limit != nil {
				lc.Limit = &Limit{Min: j.Limit.Lower, Max: j.Limit.Upper}
			}
			delete(jointByChild, ul.Name)
		}
		cfg.Links = append(cfg.Links, lc)
	}
	for child, j := range jointByChild {
		return nil, errors.Errorf("joint %q names child link %q which is not defined", j.Name, child)
	}
	return cfg, nil
}
